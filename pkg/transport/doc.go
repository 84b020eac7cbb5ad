// Package transport holds the HTTP plumbing shared by the slidewright
// server: the middleware chain, request IDs, access logging, panic
// recovery and the mapping from domain errors to JSON error responses.
//
// # Middleware
//
// Middleware wraps an http.Handler. Chain(a, b, c) produces a(b(c(h))),
// so the first middleware sees the request first. The server applies
// Recovery, RequestID and Logging in that order around every route.
//
// # Errors
//
// Handlers return domain errors (storage.ErrNotFound, tasks.ErrFinished,
// document.ErrTooLarge and the like) and let WriteError translate them.
// Client-facing failures are always encoded as an api.ErrorResponse.
//
// # Streams
//
// Long-lived progress streams (SSE and WebSocket) register with an
// InFlightRegistry so that shutdown can close them instead of waiting
// for clients to hang up.
package transport
