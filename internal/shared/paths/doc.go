// Package paths locates the host's per-user files.
//
// # Directory Structure
//
//	$XDG_CONFIG_HOME/terminal-tab/   (default ~/.config/terminal-tab)
//	  ├── shell.yaml       (shell profiles per platform)
//	  └── appearance.toml  (font and color theme)
//	$XDG_STATE_HOME/terminal-tab/    (default ~/.local/state/terminal-tab)
//	  └── term_<ulid>.json.zst or state.db
//
// Relative XDG values are ignored.
//
// # Usage
//
//	layout, err := paths.Default()
//	if err != nil {
//	    return err
//	}
//	shellFile := layout.ShellConfigFile()
package paths
