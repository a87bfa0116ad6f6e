package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Terminal   TerminalConfig
	State      StateConfig
	Appearance AppearanceConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"7681"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for the REST API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// TerminalConfig holds session launch configuration.
type TerminalConfig struct {
	// Language is the UI language used to pick LANG for spawned shells.
	Language string `envconfig:"TERMTAB_LANGUAGE" default:"en-US"`
	// Workspace is the default cwd for new terminals; empty means $HOME.
	Workspace string `envconfig:"TERMTAB_WORKSPACE"`
	// ShellConfig points at the YAML shell profile file; empty means
	// shell.yaml in the per-user config directory.
	ShellConfig string `envconfig:"TERMTAB_SHELL_CONFIG"`
	// Multiplexer is the tmux compatible binary used for persistent sessions.
	Multiplexer string `envconfig:"TERMTAB_MULTIPLEXER" default:"tmux"`
	// Namespace is the private multiplexer server socket name.
	Namespace string `envconfig:"TERMTAB_MUX_NAMESPACE" default:"terminal-tab"`
	// CheckpointDebounce is the quiescence window for state checkpoints.
	CheckpointDebounce time.Duration `envconfig:"TERMTAB_CHECKPOINT_DEBOUNCE" default:"500ms"`
	// CommandTimeout bounds helper commands (kill-session, locale -a).
	CommandTimeout time.Duration `envconfig:"TERMTAB_COMMAND_TIMEOUT" default:"5s"`
}

// StateConfig selects the persisted-state backend.
type StateConfig struct {
	Backend string `envconfig:"TERMTAB_STATE_BACKEND" default:"file"` // file, sqlite, memory
	// Path defaults to the per-user state directory.
	Path string `envconfig:"TERMTAB_STATE_PATH"`
}

// AppearanceConfig locates the appearance (font and theme) file.
type AppearanceConfig struct {
	// File defaults to appearance.toml in the per-user config directory.
	File  string `envconfig:"TERMTAB_APPEARANCE_FILE"`
	Watch bool   `envconfig:"TERMTAB_APPEARANCE_WATCH" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects combinations the host cannot run with.
func (c *Config) Validate() error {
	switch c.State.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	if c.Terminal.CheckpointDebounce <= 0 {
		return fmt.Errorf("checkpoint debounce must be positive, got %s", c.Terminal.CheckpointDebounce)
	}
	if c.Terminal.Multiplexer == "" || c.Terminal.Namespace == "" {
		return fmt.Errorf("multiplexer binary and namespace are required")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "7681",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Terminal: TerminalConfig{
			Language:           "en-US",
			Multiplexer:        "tmux",
			Namespace:          "terminal-tab",
			CheckpointDebounce: 500 * time.Millisecond,
			CommandTimeout:     5 * time.Second,
		},
		State: StateConfig{
			Backend: "file",
		},
		Appearance: AppearanceConfig{
			Watch: true,
		},
	}
}
