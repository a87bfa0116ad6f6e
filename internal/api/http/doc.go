/*
Package http provides the REST API for terminal management.

Routes:

	GET    /health
	GET    /terminals
	GET    /terminals/restorable
	GET    /terminals/:id
	DELETE /terminals/:id
	POST   /terminals/:id/visibility   {"visible": bool}
	GET    /appearance
	POST   /appearance/refresh

Terminal I/O itself travels over the WebSocket surface in package ws.
*/
package http
