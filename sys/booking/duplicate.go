package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tinedy-api/res/events"
	"tinedy-api/res/store"
)

// BookingDraft is the input the creation flow needs to store a copy of a booking
type BookingDraft struct {
	Customer       store.CustomerSnapshot `json:"customer"`
	Service        store.ServiceInfo      `json:"service"`
	Schedule       store.Schedule         `json:"schedule"`
	Notes          *string                `json:"notes,omitempty"`
	Status         store.BookingStatus    `json:"status"`
	DuplicatedFrom string                 `json:"duplicatedFrom"`
}

// PrepareDuplicate copies customer, service and notes from original and proposes the
// next available date at the same start time. Assignment, terminal metadata, history
// and the original's own duplicates never carry over.
func PrepareDuplicate(original *store.Booking, now time.Time) (*BookingDraft, error) {
	date, err := NextAvailableDate(original.Schedule.Date, now)
	if err != nil {
		return nil, err
	}

	service := original.Service
	service.RequiredSkills = append([]string{}, original.Service.RequiredSkills...)

	endTime, err := CalculateEndTime(original.Schedule.StartTime, service.EstimatedDuration)
	if err != nil {
		return nil, err
	}

	return &BookingDraft{
		Customer: original.Customer,
		Service:  service,
		Schedule: store.Schedule{
			Date:      date,
			StartTime: original.Schedule.StartTime,
			EndTime:   endTime,
		},
		Notes:          optionalString(original.Notes),
		Status:         store.BookingStatusPending,
		DuplicatedFrom: original.ID,
	}, nil
}

// CreateInput converts the draft into a creation request
func (d *BookingDraft) CreateInput() CreateInput {
	in := CreateInput{
		Customer: CustomerInput{
			Name:    d.Customer.Name,
			Phone:   d.Customer.Phone,
			Email:   d.Customer.Email,
			Address: d.Customer.Address,
		},
		Service: ServiceInput{
			Type:     d.Service.Type,
			Category: d.Service.Category,
		},
		Schedule: ScheduleInput{
			Date:      d.Schedule.Date,
			StartTime: d.Schedule.StartTime,
		},
		DuplicatedFrom: d.DuplicatedFrom,
	}
	if d.Notes != nil {
		in.Notes = *d.Notes
	}
	return in
}

func (s *Service) PrepareDuplicate(ctx context.Context, bookingID string) (*BookingDraft, error) {
	original, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return PrepareDuplicate(original, s.Now())
}

// LinkDuplicate appends newID to the original's duplicatedTo set. The new booking must
// already exist and name originalID as its source.
func (s *Service) LinkDuplicate(ctx context.Context, originalID, newID string) error {
	err := s.inTransaction(ctx, "link duplicate", func(tx store.Store) error {
		if _, err := lookup(ctx, tx.Bookings(), originalID, ErrOriginalBookingNotFound); err != nil {
			return err
		}

		duplicate, err := lookup(ctx, tx.Bookings(), newID, ErrBookingNotFound)
		if err != nil {
			return err
		}
		if duplicate.DuplicatedFrom == nil || *duplicate.DuplicatedFrom != originalID {
			return &ValidationError{Fields: map[string]string{
				"duplicatedFrom": fmt.Sprintf("booking %s was not duplicated from %s", newID, originalID),
			}}
		}

		return linkDuplicate(ctx, tx, originalID, newID)
	})
	if err != nil {
		return err
	}

	s.Logger.Printf("Linked duplicate booking %s to original %s", newID, originalID)
	return nil
}

func linkDuplicate(ctx context.Context, tx store.Store, originalID, newID string) error {
	if err := tx.Bookings().AddDuplicate(ctx, originalID, newID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOriginalBookingNotFound
		}
		return err
	}
	return nil
}

func (s *Service) afterDuplicate(ctx context.Context, b *store.Booking, actor string) {
	s.publish(ctx, events.TypeBookingDuplicated, b, actor, map[string]any{
		"duplicatedFrom": *b.DuplicatedFrom,
	})
}
