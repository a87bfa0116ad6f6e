package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the per-user directories.
const AppName = "terminal-tab"

// File names inside the config directory
const (
	ShellConfigName = "shell.yaml"
	AppearanceName  = "appearance.toml"
)

// Layout holds the per-user directories of the host.
type Layout struct {
	// Config holds user edited files: shell profiles and appearance.
	Config string
	// State holds persisted session state.
	State string
}

// Resolve builds the layout from the XDG base directory variables, falling
// back to ~/.config and ~/.local/state.
func Resolve(getenv func(string) string, home string) (Layout, error) {
	configHome := absOrEmpty(getenv("XDG_CONFIG_HOME"))
	stateHome := absOrEmpty(getenv("XDG_STATE_HOME"))
	if (configHome == "" || stateHome == "") && home == "" {
		return Layout{}, fmt.Errorf("no home directory to derive %s paths from", AppName)
	}
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}
	return Layout{
		Config: filepath.Join(configHome, AppName),
		State:  filepath.Join(stateHome, AppName),
	}, nil
}

func absOrEmpty(dir string) string {
	if !filepath.IsAbs(dir) {
		return ""
	}
	return dir
}

// Default resolves the layout for the current user.
func Default() (Layout, error) {
	home, _ := os.UserHomeDir()
	return Resolve(os.Getenv, home)
}

// ShellConfigFile returns the default shell profile file.
func (l Layout) ShellConfigFile() string {
	return filepath.Join(l.Config, ShellConfigName)
}

// AppearanceFile returns the default appearance file.
func (l Layout) AppearanceFile() string {
	return filepath.Join(l.Config, AppearanceName)
}

// Ensure creates the layout's directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Config, l.State} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
