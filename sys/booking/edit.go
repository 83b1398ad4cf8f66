package booking

import (
	"context"
	"errors"
	"strings"

	"tinedy-api/res/events"
	"tinedy-api/res/store"

	"github.com/google/uuid"
)

// CustomerPatch, ServicePatch and SchedulePatch carry the fields an edit sets. Nil
// fields keep their stored value.
type CustomerPatch struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

type ServicePatch struct {
	Type     *store.ServiceType `json:"type"`
	Category *string            `json:"category"`
}

type SchedulePatch struct {
	Date      *string `json:"date"`
	StartTime *string `json:"startTime"`
}

type EditInput struct {
	Customer           *CustomerPatch       `json:"customer"`
	Service            *ServicePatch        `json:"service"`
	Schedule           *SchedulePatch       `json:"schedule"`
	Notes              *string              `json:"notes"`
	Status             *store.BookingStatus `json:"status"`
	StatusChangeReason *string              `json:"statusChangeReason"`
}

// EditBooking merges in into the booking and records every changed field in the
// booking's change history. A status change goes through the same workflow rules as
// UpdateStatus. Nothing is written when no field actually changes.
func (s *Service) EditBooking(ctx context.Context, id string, in EditInput, userID string) (*store.Booking, error) {
	var (
		updated  *store.Booking
		previous store.BookingStatus
		changes  []store.FieldChange
	)

	err := s.inTransaction(ctx, "edit booking", func(tx store.Store) error {
		changes = nil

		current, err := tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		previous = current.Status

		statusChange := in.Status != nil && *in.Status != current.Status
		if statusChange {
			if err := checkTransition(current.Status, *in.Status); err != nil {
				return err
			}
		}

		updates, fieldChanges, err := s.mergeEdit(current, in)
		if err != nil {
			return err
		}
		changes = fieldChanges

		if len(changes) > 0 {
			updates.UpdatedAt = s.Now().UTC()
			updates.UpdatedBy = userID
			if err := tx.Bookings().Update(ctx, id, updates); err != nil {
				return err
			}
		}

		if statusChange {
			changes = append(changes, store.FieldChange{Field: "status", OldValue: current.Status, NewValue: *in.Status})
			err := s.applyStatusChange(ctx, tx, current, StatusChangeInput{
				BookingID: id,
				Status:    *in.Status,
				Reason:    in.StatusChangeReason,
				UserID:    userID,
			})
			if err != nil {
				return err
			}
		}

		if len(changes) > 0 {
			if err := tx.Bookings().AppendChange(ctx, &store.BookingChange{
				ID:        uuid.New().String(),
				BookingID: id,
				ChangedAt: s.Now().UTC(),
				ChangedBy: userID,
				Changes:   changes,
			}); err != nil {
				return err
			}
		}

		updated, err = tx.Bookings().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(changes) == 0 {
		return updated, nil
	}

	fields := make([]string, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	s.Logger.Printf("Edited booking %s: %s", id, strings.Join(fields, ", "))
	s.publish(ctx, events.TypeBookingUpdated, updated, userID, map[string]any{"fields": fields})

	if updated.Status != previous {
		s.afterStatusChange(ctx, updated, previous, StatusChangeInput{
			BookingID: id,
			Status:    updated.Status,
			Reason:    in.StatusChangeReason,
			UserID:    userID,
		})
	}
	return updated, nil
}

// mergeEdit applies the patch to copies of the booking's value objects, validates the
// merged result and returns the store update together with the per-field diff
func (s *Service) mergeEdit(current *store.Booking, in EditInput) (store.BookingUpdates, []store.FieldChange, error) {
	var (
		updates store.BookingUpdates
		changes []store.FieldChange
		v       = &ValidationError{}
	)
	record := func(field string, oldValue, newValue any) {
		changes = append(changes, store.FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
	}

	if in.Customer != nil {
		customer := current.Customer
		setString(&customer.Name, in.Customer.Name, strings.TrimSpace)
		setString(&customer.Phone, in.Customer.Phone, nil)
		setString(&customer.Email, in.Customer.Email, strings.TrimSpace)
		setString(&customer.Address, in.Customer.Address, strings.TrimSpace)

		validateCustomer(v, "customer", CustomerInput{Name: customer.Name, Phone: customer.Phone, Email: customer.Email, Address: customer.Address})

		if customer != current.Customer {
			diffString(record, "customer.name", current.Customer.Name, customer.Name)
			diffString(record, "customer.phone", current.Customer.Phone, customer.Phone)
			diffString(record, "customer.email", current.Customer.Email, customer.Email)
			diffString(record, "customer.address", current.Customer.Address, customer.Address)
			updates.Customer = &customer
		}
	}

	service := current.Service
	if in.Service != nil {
		serviceType, category := current.Service.Type, current.Service.Category
		if in.Service.Type != nil {
			serviceType = *in.Service.Type
		}
		if in.Service.Category != nil {
			category = *in.Service.Category
		}
		validateService(v, "service", ServiceInput{Type: serviceType, Category: category})

		if serviceType != current.Service.Type || category != current.Service.Category {
			service = ResolveService(serviceType, category)
			diffString(record, "service.type", string(current.Service.Type), string(service.Type))
			diffString(record, "service.category", current.Service.Category, service.Category)
			diffString(record, "service.name", current.Service.Name, service.Name)
			updates.Service = &service
		}
	}

	schedule := current.Schedule
	if in.Schedule != nil {
		setString(&schedule.Date, in.Schedule.Date, nil)
		setString(&schedule.StartTime, in.Schedule.StartTime, nil)

		if schedule.Date != current.Schedule.Date || schedule.StartTime != current.Schedule.StartTime {
			if schedule.Date != current.Schedule.Date {
				validateSchedule(v, "schedule", ScheduleInput{Date: schedule.Date, StartTime: schedule.StartTime}, s.Now())
			} else if _, err := parseClock(schedule.StartTime); err != nil {
				v.add("schedule.startTime", err.Error())
			}
		}
	}

	if len(v.Fields) > 0 {
		return updates, nil, v
	}

	// The end time follows the start time and the catalog duration
	endTime, err := CalculateEndTime(schedule.StartTime, service.EstimatedDuration)
	if err != nil {
		return updates, nil, err
	}
	schedule.EndTime = endTime
	if schedule != current.Schedule {
		if IsTerminal(current.Status) {
			return updates, nil, &TerminalStateError{Current: current.Status, Requested: current.Status}
		}
		diffString(record, "schedule.date", current.Schedule.Date, schedule.Date)
		diffString(record, "schedule.startTime", current.Schedule.StartTime, schedule.StartTime)
		diffString(record, "schedule.endTime", current.Schedule.EndTime, schedule.EndTime)
		updates.Schedule = &schedule
	}

	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		old := ""
		if current.Notes != nil {
			old = *current.Notes
		}
		if notes != old {
			record("notes", old, notes)
			updates.Notes = &notes
		}
	}

	return updates, changes, nil
}

// AssignStaff sets the staff member responsible for a non-terminal booking
func (s *Service) AssignStaff(ctx context.Context, id, staffID, staffName, userID string) (*store.Booking, error) {
	staffID, staffName = strings.TrimSpace(staffID), strings.TrimSpace(staffName)
	v := &ValidationError{}
	if staffID == "" {
		v.add("staffId", "staffId is required")
	}
	if staffName == "" {
		v.add("staffName", "staffName is required")
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	var updated *store.Booking
	err := s.inTransaction(ctx, "assign staff", func(tx store.Store) error {
		current, err := tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if IsTerminal(current.Status) {
			return &TerminalStateError{Current: current.Status, Requested: current.Status}
		}

		now := s.Now().UTC()
		assignment := &store.Assignment{StaffID: staffID, StaffName: staffName, AssignedAt: now}
		if err := tx.Bookings().Update(ctx, id, store.BookingUpdates{
			Assignment: assignment,
			UpdatedAt:  now,
			UpdatedBy:  userID,
		}); err != nil {
			return err
		}

		var old any
		if a := current.AssignedTo(); a != nil {
			old = a
		}
		if err := tx.Bookings().AppendChange(ctx, &store.BookingChange{
			ID:        uuid.New().String(),
			BookingID: id,
			ChangedAt: now,
			ChangedBy: userID,
			Changes:   []store.FieldChange{{Field: "assignedTo", OldValue: old, NewValue: assignment}},
		}); err != nil {
			return err
		}

		updated, err = tx.Bookings().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Printf("Assigned staff %s to booking %s", staffID, id)
	s.publish(ctx, events.TypeBookingUpdated, updated, userID, map[string]any{
		"fields":  []string{"assignedTo"},
		"staffId": staffID,
	})
	return updated, nil
}

func setString(dst *string, value *string, normalize func(string) string) {
	if value == nil {
		return
	}
	if normalize != nil {
		*dst = normalize(*value)
		return
	}
	*dst = *value
}

func diffString(record func(string, any, any), field, oldValue, newValue string) {
	if oldValue != newValue {
		record(field, oldValue, newValue)
	}
}
