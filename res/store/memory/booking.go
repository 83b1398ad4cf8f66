package memory

import (
	"context"
	"fmt"
	"sort"

	"tinedy-api/res/store"
)

type bookingStore struct {
	*storeImpl
}

// MUTATIONS

func (bs *bookingStore) Create(ctx context.Context, booking *store.Booking) error {
	defer bs.lock()()
	data := bs.root.data

	if booking.ID == "" {
		return fmt.Errorf("%w: booking id is required", store.ErrInvalidInput)
	}
	if _, exists := data.bookings[booking.ID]; exists {
		return fmt.Errorf("%w: booking %s", store.ErrUniqueViolation, booking.ID)
	}
	if booking.DuplicatedFrom != nil {
		if _, ok := data.bookings[*booking.DuplicatedFrom]; !ok {
			return fmt.Errorf("%w: booking %s", store.ErrNotFound, *booking.DuplicatedFrom)
		}
	}

	for i := range booking.StatusHistory {
		data.nextEventID++
		booking.StatusHistory[i].ID = data.nextEventID
		booking.StatusHistory[i].BookingID = booking.ID
	}

	stored := cloneBooking(booking)
	stored.Duplicates = nil
	data.bookings[booking.ID] = stored
	return nil
}

func (bs *bookingStore) Update(ctx context.Context, id string, u store.BookingUpdates) error {
	defer bs.lock()()

	b, ok := bs.root.data.bookings[id]
	if !ok {
		return fmt.Errorf("%w: booking %s", store.ErrNotFound, id)
	}

	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.Customer != nil {
		b.Customer = *u.Customer
	}
	if u.Service != nil {
		b.Service = *u.Service
		b.Service.RequiredSkills = append([]string(nil), u.Service.RequiredSkills...)
	}
	if u.Schedule != nil {
		b.Schedule = *u.Schedule
	}
	if u.Notes != nil {
		b.Notes = cloneString(u.Notes)
	}
	if u.ClearAssignment {
		b.AssignedStaffID, b.AssignedStaffName, b.AssignedAt = nil, nil, nil
	} else if u.Assignment != nil {
		staffID, staffName, assignedAt := u.Assignment.StaffID, u.Assignment.StaffName, u.Assignment.AssignedAt
		b.AssignedStaffID, b.AssignedStaffName, b.AssignedAt = &staffID, &staffName, &assignedAt
	}
	if u.CompletedAt != nil {
		b.CompletedAt = cloneTime(u.CompletedAt)
	}
	if u.CancelledAt != nil {
		b.CancelledAt = cloneTime(u.CancelledAt)
	}

	b.UpdatedAt = u.UpdatedAt
	b.UpdatedBy = u.UpdatedBy
	return nil
}

func (bs *bookingStore) AppendStatusEvent(ctx context.Context, event *store.BookingStatusEvent) error {
	defer bs.lock()()
	data := bs.root.data

	b, ok := data.bookings[event.BookingID]
	if !ok {
		return fmt.Errorf("%w: booking %s", store.ErrNotFound, event.BookingID)
	}

	data.nextEventID++
	event.ID = data.nextEventID

	stored := *event
	stored.Reason = cloneString(event.Reason)
	stored.Notes = cloneString(event.Notes)
	b.StatusHistory = append(b.StatusHistory, stored)
	return nil
}

func (bs *bookingStore) AppendChange(ctx context.Context, change *store.BookingChange) error {
	defer bs.lock()()

	b, ok := bs.root.data.bookings[change.BookingID]
	if !ok {
		return fmt.Errorf("%w: booking %s", store.ErrNotFound, change.BookingID)
	}

	stored := *change
	stored.Changes = append([]store.FieldChange(nil), change.Changes...)
	b.ChangeHistory = append(b.ChangeHistory, stored)
	return nil
}

func (bs *bookingStore) AddDuplicate(ctx context.Context, originalID, duplicateID string) error {
	defer bs.lock()()
	data := bs.root.data

	if _, ok := data.bookings[originalID]; !ok {
		return fmt.Errorf("%w: booking %s", store.ErrNotFound, originalID)
	}
	if _, ok := data.bookings[duplicateID]; !ok {
		return fmt.Errorf("%w: booking %s", store.ErrNotFound, duplicateID)
	}
	for _, link := range data.links[originalID] {
		if link.DuplicateID == duplicateID {
			return nil
		}
	}

	data.links[originalID] = append(data.links[originalID], store.BookingLink{
		OriginalID:  originalID,
		DuplicateID: duplicateID,
		CreatedAt:   data.bookings[duplicateID].CreatedAt,
	})
	return nil
}

// QUERIES

func (bs *bookingStore) Get(ctx context.Context, id string) (*store.Booking, error) {
	defer bs.lock()()
	return bs.get(id)
}

// GetForUpdate is Get: inside Transaction the store-wide lock is already held.
func (bs *bookingStore) GetForUpdate(ctx context.Context, id string) (*store.Booking, error) {
	defer bs.lock()()
	return bs.get(id)
}

func (bs *bookingStore) get(id string) (*store.Booking, error) {
	b, ok := bs.root.data.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", store.ErrNotFound, id)
	}
	return bs.view(b), nil
}

// view returns a detached copy with the link set attached
func (bs *bookingStore) view(b *store.Booking) *store.Booking {
	c := cloneBooking(b)
	c.Duplicates = append([]store.BookingLink(nil), bs.root.data.links[b.ID]...)
	return c
}

func (bs *bookingStore) Find(ctx context.Context, q store.BookingQuery) ([]*store.Booking, error) {
	defer bs.lock()()

	matched, err := bs.filter(q)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return less(matched[i], matched[j], q.OrderBy, q.Descending)
	})

	if q.After != "" {
		cursor, ok := bs.root.data.bookings[q.After]
		if !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrInvalidCursor, q.After)
		}
		start := len(matched)
		for i, b := range matched {
			if less(cursor, b, q.OrderBy, q.Descending) {
				start = i
				break
			}
		}
		matched = matched[start:]
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	bookings := make([]*store.Booking, 0, len(matched))
	for _, b := range matched {
		bookings = append(bookings, bs.view(b))
	}
	return bookings, nil
}

func (bs *bookingStore) Count(ctx context.Context, q store.BookingQuery) (int64, error) {
	defer bs.lock()()

	matched, err := bs.filter(q)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (bs *bookingStore) LoadMany(ctx context.Context, ids []string) ([]*store.Booking, error) {
	defer bs.lock()()

	bookings := make([]*store.Booking, 0, len(ids))
	for _, id := range ids {
		if b, ok := bs.root.data.bookings[id]; ok {
			bookings = append(bookings, bs.view(b))
		}
	}
	return bookings, nil
}

func (bs *bookingStore) filter(q store.BookingQuery) ([]*store.Booking, error) {
	if len(q.Statuses) > store.MaxInFilterValues {
		return nil, fmt.Errorf("%w: at most %d status values (got %d)", store.ErrInvalidInput, store.MaxInFilterValues, len(q.Statuses))
	}

	statuses := make(map[store.BookingStatus]bool, len(q.Statuses))
	for _, s := range q.Statuses {
		statuses[s] = true
	}

	var matched []*store.Booking
	for _, b := range bs.root.data.bookings {
		if len(statuses) > 0 && !statuses[b.Status] {
			continue
		}
		if q.Date != "" {
			if b.Schedule.Date != q.Date {
				continue
			}
		} else if q.DateFrom != "" && q.DateTo != "" {
			if b.Schedule.Date < q.DateFrom || b.Schedule.Date > q.DateTo {
				continue
			}
		}
		if q.CustomerID != "" && b.Customer.ID != q.CustomerID {
			continue
		}
		matched = append(matched, b)
	}
	return matched, nil
}

// less orders by the sort field, then by id, in the requested direction
func less(a, b *store.Booking, field store.BookingSortField, descending bool) bool {
	cmp := 0
	switch field {
	case store.BookingSortCreatedAt:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	case store.BookingSortStatus:
		cmp = compareStrings(string(a.Status), string(b.Status))
	default:
		cmp = compareStrings(a.Schedule.Date, b.Schedule.Date)
	}
	if cmp == 0 {
		cmp = compareStrings(a.ID, b.ID)
	}
	if descending {
		return cmp > 0
	}
	return cmp < 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
