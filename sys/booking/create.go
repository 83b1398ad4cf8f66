package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"tinedy-api/res/events"
	"tinedy-api/res/store"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

var (
	phonePattern     = regexp.MustCompile(`^0\d{9}$`)
	startTimePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type ServiceInput struct {
	Type     store.ServiceType `json:"type"`
	Category string            `json:"category"`
}

type ScheduleInput struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
}

type CreateInput struct {
	Customer       CustomerInput `json:"customer"`
	Service        ServiceInput  `json:"service"`
	Schedule       ScheduleInput `json:"schedule"`
	Notes          string        `json:"notes"`
	DuplicatedFrom string        `json:"duplicatedFrom"`
}

func newBookingID() string {
	return fmt.Sprintf("bkg_%s", xid.New().String())
}

// CreateBooking stores a new pending booking. The customer master record is upserted by
// phone and its booking counter incremented. When the input names a source booking, the
// source must exist and the two-way duplicate link is written in the same transaction.
func (s *Service) CreateBooking(ctx context.Context, in CreateInput, userID string) (*store.Booking, error) {
	now := s.Now().UTC()
	if err := validateCreate(in, s.Now()); err != nil {
		return nil, err
	}

	if in.DuplicatedFrom != "" {
		if _, err := lookup(ctx, s.Store.Bookings(), in.DuplicatedFrom, ErrOriginalBookingNotFound); err != nil {
			return nil, err
		}
	}

	service := ResolveService(in.Service.Type, in.Service.Category)
	endTime, err := CalculateEndTime(in.Schedule.StartTime, service.EstimatedDuration)
	if err != nil {
		return nil, err
	}

	id := newBookingID()
	var created *store.Booking

	err = s.inTransaction(ctx, "create booking", func(tx store.Store) error {
		customerID, err := upsertCustomer(ctx, tx, in.Customer)
		if err != nil {
			return err
		}

		booking := &store.Booking{
			ID: id,
			Customer: store.CustomerSnapshot{
				ID:      customerID,
				Name:    strings.TrimSpace(in.Customer.Name),
				Phone:   in.Customer.Phone,
				Email:   strings.TrimSpace(in.Customer.Email),
				Address: strings.TrimSpace(in.Customer.Address),
			},
			Service: service,
			Schedule: store.Schedule{
				Date:      in.Schedule.Date,
				StartTime: in.Schedule.StartTime,
				EndTime:   endTime,
			},
			Status: store.BookingStatusPending,
			StatusHistory: []store.BookingStatusEvent{{
				Status:    store.BookingStatusPending,
				ChangedAt: now,
				ChangedBy: userID,
			}},
			CreatedAt: now,
			CreatedBy: userID,
			UpdatedAt: now,
			UpdatedBy: userID,
		}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			booking.Notes = &notes
		}
		if in.DuplicatedFrom != "" {
			original := in.DuplicatedFrom
			booking.DuplicatedFrom = &original
		}

		if err := tx.Bookings().Create(ctx, booking); err != nil {
			if booking.DuplicatedFrom != nil && errors.Is(err, store.ErrNotFound) {
				return ErrOriginalBookingNotFound
			}
			return err
		}
		if err := tx.Customers().IncrementTotalBookings(ctx, customerID); err != nil {
			return err
		}
		if booking.DuplicatedFrom != nil {
			if err := linkDuplicate(ctx, tx, *booking.DuplicatedFrom, id); err != nil {
				return err
			}
		}

		created, err = tx.Bookings().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Printf("Created booking %s for customer %s", created.ID, created.Customer.ID)
	s.afterCreate(ctx, created, userID)
	return created, nil
}

// upsertCustomer returns the id of the customer with the given phone, creating the
// record or refreshing its contact details as needed
func upsertCustomer(ctx context.Context, tx store.Store, in CustomerInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	address := strings.TrimSpace(in.Address)

	existing, err := tx.Customers().GetByPhone(ctx, in.Phone)
	switch {
	case err == nil:
		if existing.Name != name || existing.Email != email || existing.Address != address {
			if err := tx.Customers().Update(ctx, existing.ID, name, email, address); err != nil {
				return "", err
			}
		}
		return existing.ID, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	}

	customer := &store.Customer{
		ID:      uuid.New().String(),
		Name:    name,
		Phone:   in.Phone,
		Email:   email,
		Address: address,
	}
	if err := tx.Customers().Create(ctx, customer); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			// Another request created the same phone first; a re-run finds it
			return "", fmt.Errorf("%w: %w", store.ErrTransient, err)
		}
		return "", err
	}
	return customer.ID, nil
}

func (s *Service) afterCreate(ctx context.Context, b *store.Booking, actor string) {
	s.publish(ctx, events.TypeBookingCreated, b, actor, map[string]any{
		"customerId":  b.Customer.ID,
		"serviceType": b.Service.Type,
		"date":        b.Schedule.Date,
	})
	if b.DuplicatedFrom != nil {
		s.afterDuplicate(ctx, b, actor)
	}

	if s.NotificationService != nil {
		if err := s.NotificationService.NotifyBookingCreated(ctx, b.ID, b.Customer.Name, b.Service.Name, b.Schedule.Date, b.Schedule.StartTime); err != nil {
			s.Logger.Printf("Warning: Failed to send notification for booking %s: %v", b.ID, err)
		}
	}
}

func validateCreate(in CreateInput, now time.Time) error {
	v := &ValidationError{}
	validateCustomer(v, "customer", in.Customer)
	validateService(v, "service", in.Service)
	validateSchedule(v, "schedule", in.Schedule, now)
	return v.orNil()
}

func validateCustomer(v *ValidationError, prefix string, c CustomerInput) {
	name := strings.TrimSpace(c.Name)
	switch {
	case name == "":
		v.add(prefix+".name", "name is required")
	case !utf8.ValidString(name) || utf8.RuneCountInString(name) > 200:
		v.add(prefix+".name", "name must be valid text of at most 200 characters")
	}

	if !phonePattern.MatchString(c.Phone) {
		v.add(prefix+".phone", "phone must be 10 digits starting with 0")
	}

	if email := strings.TrimSpace(c.Email); email != "" {
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			v.add(prefix+".email", "invalid email address")
		}
	}

	if strings.TrimSpace(c.Address) == "" {
		v.add(prefix+".address", "address is required")
	}
}

func validateService(v *ValidationError, prefix string, s ServiceInput) {
	if s.Type != store.ServiceTypeCleaning && s.Type != store.ServiceTypeTraining {
		v.add(prefix+".type", "type must be cleaning or training")
	}
	if !serviceCategories[s.Category] {
		v.add(prefix+".category", "category must be one of deep, regular, individual, corporate")
	}
}

// validateSchedule requires a calendar date strictly after today
func validateSchedule(v *ValidationError, prefix string, s ScheduleInput, now time.Time) {
	date, err := time.ParseInLocation(dateLayout, s.Date, now.Location())
	if err != nil {
		v.add(prefix+".date", "date must be formatted YYYY-MM-DD")
	} else if y, m, d := now.Date(); !date.After(time.Date(y, m, d, 0, 0, 0, 0, now.Location())) {
		v.add(prefix+".date", "date must be in the future")
	}

	if !startTimePattern.MatchString(s.StartTime) {
		v.add(prefix+".startTime", "startTime must be formatted HH:MM")
	} else if _, err := parseClock(s.StartTime); err != nil {
		v.add(prefix+".startTime", err.Error())
	}
}
