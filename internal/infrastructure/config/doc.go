// Package config provides 12-factor configuration for the terminal host.
//
// Configuration is loaded from environment variables with defaults.
// CLI flags in cmd/server can override the listen port and log mode.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting for the REST API
//   - Terminal: language, workspace, shell profile, multiplexer, debounce
//   - State: persisted session state backend (file, sqlite, memory)
//   - Appearance: font/theme file and whether to watch it
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - TERMTAB_LANGUAGE, TERMTAB_WORKSPACE, TERMTAB_SHELL_CONFIG
//   - TERMTAB_MULTIPLEXER, TERMTAB_MUX_NAMESPACE
//   - TERMTAB_CHECKPOINT_DEBOUNCE, TERMTAB_COMMAND_TIMEOUT
//   - TERMTAB_STATE_BACKEND, TERMTAB_STATE_PATH
//   - TERMTAB_APPEARANCE_FILE, TERMTAB_APPEARANCE_WATCH
package config
