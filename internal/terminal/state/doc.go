/*
Package state persists SessionState so terminals can be restored after the
host restarts.

# Format

A SessionState is stored as JSON. Decode validates it against a JSON schema
before parsing, so a truncated or hand-edited record is rejected with
ErrInvalid instead of producing a half-built session. Scrollback history is
dropped for persistent sessions; their multiplexer keeps the real buffer.

# Backends

  - FileStore: one zstd compressed <id>.json.zst per session, written by
    atomic rename
  - SQLiteStore: a session_state table in a single database file
  - MemoryStore: process local, for tests and ephemeral hosts

# Checkpoints

Checkpointer coalesces bursts of state changes (title updates, resizes) into
one write per quiescence window:

	cp := state.NewCheckpointer(store, 500*time.Millisecond, logger, metrics)
	cp.Schedule(snapshot)          // debounced
	cp.Flush(ctx, snapshot)        // immediate, cancels the pending write
	cp.Forget(ctx, id)             // cancel and delete
*/
package state
