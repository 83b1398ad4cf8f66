package store

import "errors"

var (
	ErrNotFound        = errors.New("store: record not found")
	ErrUniqueViolation = errors.New("store: duplicate key value violates unique constraint")
	ErrInvalidInput    = errors.New("store: invalid input")

	// ErrInvalidCursor is returned by BookingStore.Find when the seek cursor
	// does not reference an existing booking.
	ErrInvalidCursor = errors.New("store: invalid cursor")

	// ErrTransient marks failures that may succeed when the whole operation is retried
	// (serialization failures, deadlocks, dropped connections).
	ErrTransient = errors.New("store: transient failure")
)
