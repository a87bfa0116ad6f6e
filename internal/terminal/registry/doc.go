/*
Package registry owns the table of live terminal sessions.

Sessions are created through Create (interactive, default shell profile) or
Restore (from persisted state) and are registered under their id when the
surface reports ready. A second session claiming a registered id is disposed
as a duplicate before it spawns anything.

# Teardown

When a session is disposed the registry removes it and applies a policy by
reason:

	closed, exited, spawn_failed   forget state, kill multiplexer session
	detached, shutdown             flush state, keep multiplexer session
	duplicate                      nothing

Shutdown therefore never destroys persistent sessions; they can be restored
by id after the host restarts.
*/
package registry
