// Package main is the entry point for the terminal host server.
//
// The host runs interactive shells in pseudo-terminals and bridges each one
// to a UI surface over WebSocket. Persistent terminals run inside a private
// tmux server so they survive the host; their state is checkpointed and can
// be restored after a restart.
//
// The server provides:
//   - WebSocket terminal I/O at /terminals/ws
//   - REST API for listing, closing and restoring terminals
//   - Appearance (font and theme) reload with change broadcast
//   - Prometheus metrics at /metrics
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 7681
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: detach every terminal, flush state and exit
package main
