package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist or belongs to another owner.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a unique field (such as a user's email) is already taken.
	ErrConflict = errors.New("record already exists")

	// ErrNoOwner is returned when a presentation is written without an owner in the context.
	ErrNoOwner = errors.New("no owner in context")
)
