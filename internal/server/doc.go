// Package server hosts the broadcast control API from a single HTTP server.
//
// The server builds a consistent middleware chain of request IDs, CORS,
// security headers, rate limiting, metrics, and logging so handlers all share
// common protections and instrumentation. Producer-only routes additionally
// verify the dispatch token.
package server
