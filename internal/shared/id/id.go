// Package id generates the identifiers used across the terminal host.
//
// Terminal IDs double as multiplexer session names and as state-store keys,
// so they are restricted to characters that are safe in tmux target names,
// socket paths and file names:
//   - term_<ULID>: terminal sessions (k-sortable, collision resistant)
//   - surface IDs: random UUIDs for individual UI connections
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TerminalID identifies a restorable terminal session
type TerminalID string

// SurfaceID identifies one UI surface connection
type SurfaceID string

// TerminalPrefix is prepended to every generated terminal ID
const TerminalPrefix = "term"

// maxNameLength bounds client supplied names; tmux and unix sockets both
// choke on very long names.
const maxNameLength = 96

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it for deterministic IDs.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewTerminalID generates a new terminal session ID
func NewTerminalID() TerminalID {
	return TerminalID(Default().GenerateWithPrefix(TerminalPrefix))
}

// NewSurfaceID generates a new surface connection ID
func NewSurfaceID() SurfaceID {
	return SurfaceID(uuid.NewString())
}

func (id TerminalID) String() string { return string(id) }
func (id SurfaceID) String() string  { return string(id) }

// IsSafeName reports whether name can be used verbatim as a multiplexer
// session name, socket name and file name.
func IsSafeName(name string) bool {
	return len(name) <= maxNameLength && safeName.MatchString(name)
}

// IsTerminalID reports whether s is a well formed generated terminal ID
func IsTerminalID(s string) bool {
	rest, ok := strings.CutPrefix(s, TerminalPrefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}

// Timestamp extracts the creation time from a terminal ID
func Timestamp(s string) (time.Time, error) {
	rest, _ := strings.CutPrefix(s, TerminalPrefix+"_")
	parsed, err := ulid.ParseStrict(rest)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid terminal id %q: %w", s, err)
	}
	return ulid.Time(parsed.Time()), nil
}
