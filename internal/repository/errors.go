package repository

import "errors"

var (
	// ErrStateConflict is returned when a job's stored state no longer matches
	// the state a transition was validated against.
	ErrStateConflict = errors.New("job state changed concurrently")
	// ErrEmailTaken is returned when an account email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)
