// Package server wires the photo vault API behind a single HTTP server.
//
// The server builds a consistent middleware chain of session identity, CORS,
// security headers, metrics, request IDs, and logging so handlers all share
// common protections and instrumentation.
package server
