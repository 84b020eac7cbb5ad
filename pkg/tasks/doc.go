// Package tasks runs long operations, such as presentation generation, on a
// bounded pool of background workers and keeps their status for polling.
//
// Tasks move through pending, running and one of the terminal states
// completed, failed or cancelled. Every transition is checked with
// api.ValidateTaskTransition. Status is process-local and lost on restart.
package tasks
