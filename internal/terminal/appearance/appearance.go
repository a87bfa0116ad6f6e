// Package appearance loads the terminal font and color settings that
// surfaces render with and notifies sessions when they change on disk.
package appearance

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Appearance is the ambient style shared by every surface.
type Appearance struct {
	FontFamily string            `toml:"font_family" json:"fontFamily"`
	FontSize   float64           `toml:"font_size" json:"fontSize"`
	FontWeight string            `toml:"font_weight" json:"fontWeight"`
	ColorTheme string            `toml:"color_theme" json:"colorTheme"`
	Colors     map[string]string `toml:"colors" json:"colors,omitempty"`
}

// Default returns the built-in appearance.
func Default() Appearance {
	return Appearance{
		FontFamily: "monospace",
		FontSize:   14,
		FontWeight: "normal",
		ColorTheme: "dark",
	}
}

// Load reads the TOML file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (Appearance, error) {
	a := Default()
	if path == "" {
		return a, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return a, nil
	}
	if err != nil {
		return a, fmt.Errorf("read appearance: %w", err)
	}
	if err := toml.Unmarshal(data, &a); err != nil {
		return Default(), fmt.Errorf("parse appearance %s: %w", path, err)
	}
	if a.FontSize <= 0 {
		a.FontSize = Default().FontSize
	}
	return a, nil
}

// Source holds the current appearance for a file.
type Source struct {
	path string

	mu      sync.RWMutex
	current Appearance
}

// NewSource loads path and returns a source tracking it.
func NewSource(path string) (*Source, error) {
	a, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Source{path: path, current: a}, nil
}

// Path returns the watched file path.
func (s *Source) Path() string {
	return s.path
}

// Current returns the last successfully loaded appearance.
func (s *Source) Current() Appearance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the file and reports whether the appearance changed. On
// error the previous appearance is kept.
func (s *Source) Reload() (bool, error) {
	a, err := Load(s.path)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if reflect.DeepEqual(a, s.current) {
		return false, nil
	}
	s.current = a
	return true, nil
}
