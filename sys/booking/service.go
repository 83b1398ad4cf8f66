package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"tinedy-api/res/events"
	"tinedy-api/res/notification"
	"tinedy-api/res/store"

	"github.com/google/uuid"
)

type Config struct {
	Logger              *log.Logger
	Store               store.Store
	Events              events.Publisher                 // Optional
	NotificationService notification.NotificationService // Optional

	// Now defaults to time.Now
	Now   func() time.Time
	Retry RetryPolicy
}

// RetryPolicy bounds how often a transaction is re-run after a transient store error
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

// Service implements the booking lifecycle, duplication, creation, edit and query flows
type Service struct {
	*Config
}

func New(cfg *Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	return &Service{Config: cfg}
}

// inTransaction runs fn in one store transaction and re-runs the whole transaction,
// with exponential backoff, while it fails with store.ErrTransient. fn must only
// depend on what it reads inside the transaction.
func (s *Service) inTransaction(ctx context.Context, operation string, fn func(tx store.Store) error) error {
	delay := s.Retry.BaseDelay
	for attempt := 1; ; attempt++ {
		err := s.Store.Transaction(ctx, fn)
		if err == nil || !errors.Is(err, store.ErrTransient) || attempt >= s.Retry.Attempts {
			return err
		}

		s.Logger.Printf("Warning: %s failed on attempt %d, retrying in %s: %v", operation, attempt, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if s.Retry.MaxDelay > 0 && delay > s.Retry.MaxDelay {
			delay = s.Retry.MaxDelay
		}
	}
}

// publish sends a domain event after commit. Failures are logged only.
func (s *Service) publish(ctx context.Context, eventType string, booking *store.Booking, actor string, data map[string]any) {
	if s.Events == nil {
		return
	}

	event := events.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		BookingID:  booking.ID,
		Actor:      actor,
		OccurredAt: s.Now().UTC(),
		Data:       data,
	}
	if err := s.Events.Publish(ctx, event); err != nil {
		s.Logger.Printf("Warning: Failed to publish %s for booking %s: %v", eventType, booking.ID, err)
	}
}

// lookup maps a missing booking onto notFound
func lookup(ctx context.Context, bookings store.BookingStore, id string, notFound error) (*store.Booking, error) {
	b, err := bookings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*store.Booking, error) {
	return lookup(ctx, s.Store.Bookings(), id, ErrBookingNotFound)
}

// GetLinkedBookings returns the booking a duplicate was copied from (nil when none)
// and the bookings copied from it, loaded in one batch.
func (s *Service) GetLinkedBookings(ctx context.Context, id string) (*store.Booking, []*store.Booking, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ids := b.DuplicatedTo()
	if b.DuplicatedFrom != nil {
		ids = append(ids, *b.DuplicatedFrom)
	}

	loaded, err := s.Store.Bookings().LoadMany(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	var original *store.Booking
	duplicates := make([]*store.Booking, 0, len(loaded))
	for _, linked := range loaded {
		if b.DuplicatedFrom != nil && linked.ID == *b.DuplicatedFrom {
			original = linked
			continue
		}
		duplicates = append(duplicates, linked)
	}
	return original, duplicates, nil
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
