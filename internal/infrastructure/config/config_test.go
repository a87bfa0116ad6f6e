package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "7681", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, "en-US", cfg.Terminal.Language)
	assert.Equal(t, "tmux", cfg.Terminal.Multiplexer)
	assert.Equal(t, "terminal-tab", cfg.Terminal.Namespace)
	assert.Equal(t, 500*time.Millisecond, cfg.Terminal.CheckpointDebounce)

	assert.Equal(t, "file", cfg.State.Backend)
	assert.True(t, cfg.Appearance.Watch)

	require.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Default().Terminal, cfg.Terminal)
	assert.Equal(t, Default().State, cfg.State)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                        "9000",
		"HOST":                        "0.0.0.0",
		"LOG_LEVEL":                   "debug",
		"LOG_DEV":                     "true",
		"RATE_LIMIT_ENABLED":          "false",
		"TERMTAB_LANGUAGE":            "de-DE",
		"TERMTAB_WORKSPACE":           "/srv/work",
		"TERMTAB_MULTIPLEXER":         "/usr/local/bin/tmux",
		"TERMTAB_MUX_NAMESPACE":       "ns-test",
		"TERMTAB_CHECKPOINT_DEBOUNCE": "2s",
		"TERMTAB_STATE_BACKEND":       "sqlite",
		"TERMTAB_STATE_PATH":          "/var/lib/tt/state.db",
		"TERMTAB_APPEARANCE_FILE":     "/etc/tt/appearance.toml",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "de-DE", cfg.Terminal.Language)
	assert.Equal(t, "/srv/work", cfg.Terminal.Workspace)
	assert.Equal(t, "/usr/local/bin/tmux", cfg.Terminal.Multiplexer)
	assert.Equal(t, "ns-test", cfg.Terminal.Namespace)
	assert.Equal(t, 2*time.Second, cfg.Terminal.CheckpointDebounce)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, "/var/lib/tt/state.db", cfg.State.Path)
	assert.Equal(t, "/etc/tt/appearance.toml", cfg.Appearance.File)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown backend", "TERMTAB_STATE_BACKEND", "redis"},
		{"zero debounce", "TERMTAB_CHECKPOINT_DEBOUNCE", "0s"},
		{"bad duration", "TERMTAB_CHECKPOINT_DEBOUNCE", "soon"},
		{"empty namespace", "TERMTAB_MUX_NAMESPACE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back instead of failing
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}
