// Package middleware holds the gin middleware shared by the REST API: CORS
// for the UI container and per-client rate limiting.
package middleware
