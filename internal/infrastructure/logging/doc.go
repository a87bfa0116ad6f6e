// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Logs go to stderr by default so a host that multiplexes stdout keeps a
// clean channel.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	log := logger.Component("registry")
//	log.Info("terminal loaded", logging.SessionField(id))
package logging
