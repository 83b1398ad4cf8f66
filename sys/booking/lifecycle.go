package booking

import (
	"context"
	"errors"

	"tinedy-api/res/events"
	"tinedy-api/res/store"
)

type StatusChangeInput struct {
	BookingID string
	Status    store.BookingStatus
	Reason    *string // Stored only for cancellations
	Notes     *string
	UserID    string
}

// UpdateStatus moves a booking along the workflow in one locked transaction: read,
// validate, write status with history entry, and release staff on cancellation.
// Concurrent callers on the same booking queue on the row lock and validate against
// the state the previous transaction committed.
func (s *Service) UpdateStatus(ctx context.Context, in StatusChangeInput) (*store.Booking, error) {
	var (
		updated  *store.Booking
		previous store.BookingStatus
	)

	err := s.inTransaction(ctx, "status update", func(tx store.Store) error {
		current, err := tx.Bookings().GetForUpdate(ctx, in.BookingID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		if err := checkTransition(current.Status, in.Status); err != nil {
			return err
		}

		if err := s.applyStatusChange(ctx, tx, current, in); err != nil {
			return err
		}

		previous = current.Status
		updated, err = tx.Bookings().Get(ctx, in.BookingID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, updated, previous, in)
	return updated, nil
}

func checkTransition(current, requested store.BookingStatus) error {
	if IsTerminal(current) {
		return &TerminalStateError{Current: current, Requested: requested}
	}
	if !IsValidTransition(current, requested) {
		return &InvalidTransitionError{Current: current, Requested: requested, Allowed: ValidNextStatuses(current)}
	}
	return nil
}

// applyStatusChange writes an already validated transition inside tx
func (s *Service) applyStatusChange(ctx context.Context, tx store.Store, current *store.Booking, in StatusChangeInput) error {
	changedAt := s.Now().UTC()

	event := &store.BookingStatusEvent{
		BookingID: current.ID,
		Status:    in.Status,
		ChangedAt: changedAt,
		ChangedBy: in.UserID,
		Notes:     optionalString(in.Notes),
	}
	if in.Status == store.BookingStatusCancelled {
		event.Reason = optionalString(in.Reason)
	}

	status := in.Status
	updates := store.BookingUpdates{
		Status:    &status,
		UpdatedAt: changedAt,
		UpdatedBy: in.UserID,
	}
	switch in.Status {
	case store.BookingStatusCompleted:
		updates.CompletedAt = &changedAt
	case store.BookingStatusCancelled:
		updates.CancelledAt = &changedAt
		updates.ClearAssignment = current.AssignedStaffID != nil
	}

	if err := tx.Bookings().Update(ctx, current.ID, updates); err != nil {
		return err
	}
	return tx.Bookings().AppendStatusEvent(ctx, event)
}

func (s *Service) afterStatusChange(ctx context.Context, b *store.Booking, previous store.BookingStatus, in StatusChangeInput) {
	data := map[string]any{
		"from": previous,
		"to":   b.Status,
	}
	if in.Reason != nil && b.Status == store.BookingStatusCancelled {
		data["reason"] = *in.Reason
	}
	s.publish(ctx, events.TypeBookingStatusChanged, b, in.UserID, data)

	if b.Status != store.BookingStatusCancelled || s.NotificationService == nil {
		return
	}
	reason := ""
	if in.Reason != nil {
		reason = *in.Reason
	}
	if err := s.NotificationService.NotifyBookingCancelled(ctx, b.ID, b.Customer.Name, b.Schedule.Date, reason, in.UserID); err != nil {
		s.Logger.Printf("Warning: Failed to send cancellation notification for booking %s: %v", b.ID, err)
	}
}
