// Package memory is a process-local implementation of store.Store with the same
// filtering, ordering and transaction semantics as the postgresql driver. It backs
// the test suites and STORE_DRIVER=memory development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"tinedy-api/res/store"
)

type state struct {
	bookings    map[string]*store.Booking
	links       map[string][]store.BookingLink // Keyed by original id
	customers   map[string]*store.Customer
	nextEventID int64
}

func (s *state) clone() *state {
	c := &state{
		bookings:    make(map[string]*store.Booking, len(s.bookings)),
		links:       make(map[string][]store.BookingLink, len(s.links)),
		customers:   make(map[string]*store.Customer, len(s.customers)),
		nextEventID: s.nextEventID,
	}
	for id, b := range s.bookings {
		c.bookings[id] = cloneBooking(b)
	}
	for id, l := range s.links {
		c.links[id] = append([]store.BookingLink(nil), l...)
	}
	for id, cu := range s.customers {
		cp := *cu
		c.customers[id] = &cp
	}
	return c
}

type root struct {
	mu   sync.Mutex
	data *state
}

type storeImpl struct {
	root *root
	inTx bool

	bookingStore  *bookingStore
	customerStore *customerStore
}

func New() *storeImpl {
	r := &root{data: &state{
		bookings:  map[string]*store.Booking{},
		links:     map[string][]store.BookingLink{},
		customers: map[string]*store.Customer{},
	}}
	return newStoreImpl(r, false)
}

func newStoreImpl(r *root, inTx bool) *storeImpl {
	s := &storeImpl{root: r, inTx: inTx}
	s.bookingStore = &bookingStore{storeImpl: s}
	s.customerStore = &customerStore{storeImpl: s}
	return s
}

func (sImpl *storeImpl) Bookings() store.BookingStore {
	return sImpl.bookingStore
}

func (sImpl *storeImpl) Customers() store.CustomerStore {
	return sImpl.customerStore
}

func (sImpl *storeImpl) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Transaction holds the store-wide lock for the duration of fn, which serializes
// every transaction the way a row lock would for a single booking. On error the
// state captured before fn ran is restored.
func (sImpl *storeImpl) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	if sImpl.inTx {
		return fn(sImpl)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sImpl.root.mu.Lock()
	defer sImpl.root.mu.Unlock()

	snapshot := sImpl.root.data.clone()
	if err := fn(newStoreImpl(sImpl.root, true)); err != nil {
		sImpl.root.data = snapshot
		return err
	}
	return nil
}

// lock takes the store-wide lock unless the caller already runs inside Transaction.
func (sImpl *storeImpl) lock() func() {
	if sImpl.inTx {
		return func() {}
	}
	sImpl.root.mu.Lock()
	return sImpl.root.mu.Unlock
}

func cloneBooking(b *store.Booking) *store.Booking {
	c := *b
	c.Service.RequiredSkills = append([]string(nil), b.Service.RequiredSkills...)
	c.AssignedStaffID = cloneString(b.AssignedStaffID)
	c.AssignedStaffName = cloneString(b.AssignedStaffName)
	c.AssignedAt = cloneTime(b.AssignedAt)
	c.Notes = cloneString(b.Notes)
	c.DuplicatedFrom = cloneString(b.DuplicatedFrom)
	c.CompletedAt = cloneTime(b.CompletedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)

	c.StatusHistory = make([]store.BookingStatusEvent, len(b.StatusHistory))
	for i, e := range b.StatusHistory {
		e.Reason = cloneString(e.Reason)
		e.Notes = cloneString(e.Notes)
		c.StatusHistory[i] = e
	}
	c.Duplicates = append([]store.BookingLink(nil), b.Duplicates...)
	c.ChangeHistory = make([]store.BookingChange, len(b.ChangeHistory))
	for i, ch := range b.ChangeHistory {
		ch.Changes = append([]store.FieldChange(nil), ch.Changes...)
		c.ChangeHistory[i] = ch
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
