/*
Package session bridges one pseudo-terminal process and one UI surface.

# Lifecycle

	Constructed -> AwaitingReady -> Running -> Disposed

Start posts a preload message with the SessionState and waits for the
surface's ready message. Ready carries the surface size and optionally a
session id; the session then emits EventAssigned and blocks until its owner
accepts the id, so two sessions never run a process for the same id. Only
after that is the process spawned through the launch Strategy.

Disposed is reachable from every phase. Disposal kills the child at most once,
closes the surface and emits exactly one EventDisposed carrying a
DisposeReason, after which the event channel is closed.

# Concurrency

Each session runs a single loop goroutine that owns its state. Surface
messages, pty output, process exit and control calls (SetVisible,
RefreshTheme, Close) are handled there in arrival order. Snapshot, Phase and
Pid may be called from any goroutine.
*/
package session
