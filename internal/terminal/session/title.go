package session

// titleBudget is the maximum chrome title length in characters.
const titleBudget = 20

// FormatTitle shortens a process title for the host chrome. Titles longer
// than the budget keep their first 5 and last 15 characters around "...".
func FormatTitle(title string) string {
	r := []rune(title)
	if len(r) <= titleBudget {
		return title
	}
	return string(r[:5]) + "..." + string(r[len(r)-15:])
}
