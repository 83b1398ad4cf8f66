package booking

import (
	"errors"
	"fmt"

	"tinedy-api/res/store"
)

var (
	ErrBookingNotFound         = errors.New("booking not found")
	ErrOriginalBookingNotFound = errors.New("original booking not found")
)

// TerminalStateError is returned for any mutation of a completed or cancelled booking
type TerminalStateError struct {
	Current   store.BookingStatus
	Requested store.BookingStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("booking is %s and can no longer be changed", e.Current)
}

// InvalidTransitionError is returned when the workflow has no edge from Current to Requested
type InvalidTransitionError struct {
	Current   store.BookingStatus
	Requested store.BookingStatus
	Allowed   []store.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.Current, e.Requested)
}

// ValidationError carries per-field messages for a rejected input
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input (%d fields)", len(e.Fields))
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
