package events

import (
	"context"
	"time"
)

const (
	TypeBookingCreated       = "booking.created"
	TypeBookingUpdated       = "booking.updated"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeBookingDuplicated    = "booking.duplicated"
)

// Event is the JSON payload published for every committed booking mutation
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	BookingID  string         `json:"bookingId"`
	Actor      string         `json:"actor"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher delivers domain events to downstream consumers. Delivery is best effort:
// callers log failures and never roll back the mutation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
