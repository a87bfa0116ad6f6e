/*
Package tracing correlates the log lines of one request.

Every HTTP request, including WebSocket upgrades, gets a span. The trace ID
comes from the X-Trace-ID header when the caller sends one and is echoed
back, so a UI can tie its own logs to the host's. Handlers attach it to
their log lines with Field(ctx).

	tracer := tracing.New("terminal-host", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

Finished spans are logged by a background collector: errors at error level,
5xx responses at warn, everything else at debug.
*/
package tracing
