/*
Package monitoring provides Prometheus metrics for the terminal host.

# Overview

Collectors cover the HTTP API, the session lifecycle (created, disposed by
reason, spawn failures), state checkpoints, multiplexer control commands and
UI surface connections.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	metrics.IncSessionsCreated("restore")
	metrics.IncSessionsDisposed("closed")

A nil *Metrics is accepted everywhere and records nothing.
*/
package monitoring
