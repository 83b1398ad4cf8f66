package rest

import (
	"errors"
	"net/http"

	"tinedy-api/res/store"
	"tinedy-api/sys/booking"
	"tinedy-api/sys/http/middleware"
)

const (
	codeBookingNotFound         = "BOOKING_NOT_FOUND"
	codeOriginalBookingNotFound = "ORIGINAL_BOOKING_NOT_FOUND"
	codeTerminalState           = "TERMINAL_STATE"
	codeInvalidTransition       = "INVALID_TRANSITION"
	codeValidationFailed        = "VALIDATION_FAILED"
	codeInternal                = "INTERNAL"
)

// writeServiceError maps booking errors onto the API error taxonomy. Anything
// unrecognized is logged and reported as a generic internal error.
func (s *Server) writeServiceError(w http.ResponseWriter, operation string, err error) {
	var (
		terminal   *booking.TerminalStateError
		transition *booking.InvalidTransitionError
		validation *booking.ValidationError
	)

	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		middleware.WriteError(w, s.Logger, http.StatusNotFound, codeBookingNotFound, "Booking not found", nil)
	case errors.Is(err, booking.ErrOriginalBookingNotFound):
		middleware.WriteError(w, s.Logger, http.StatusNotFound, codeOriginalBookingNotFound, "Original booking not found", nil)
	case errors.As(err, &terminal):
		middleware.WriteError(w, s.Logger, http.StatusBadRequest, codeTerminalState,
			"Completed or cancelled bookings cannot be changed", map[string]any{
				"currentStatus":      terminal.Current,
				"requestedStatus":    terminal.Requested,
				"allowedTransitions": []store.BookingStatus{},
			})
	case errors.As(err, &transition):
		middleware.WriteError(w, s.Logger, http.StatusBadRequest, codeInvalidTransition,
			transition.Error(), map[string]any{
				"currentStatus":      transition.Current,
				"requestedStatus":    transition.Requested,
				"allowedTransitions": transition.Allowed,
			})
	case errors.As(err, &validation):
		s.writeValidationError(w, validation.Fields)
	default:
		s.Logger.Printf("Error: %s failed: %v", operation, err)
		middleware.WriteError(w, s.Logger, http.StatusInternalServerError, codeInternal, "Internal server error", nil)
	}
}

func (s *Server) writeValidationError(w http.ResponseWriter, fields map[string]string) {
	middleware.WriteError(w, s.Logger, http.StatusBadRequest, codeValidationFailed, "Invalid input", fields)
}
