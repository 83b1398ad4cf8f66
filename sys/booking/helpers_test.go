package booking

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"tinedy-api/res/events"
	"tinedy-api/res/store"
	"tinedy-api/res/store/memory"
)

// testNow is a Friday morning in Bangkok
var testNow = time.Date(2025, 10, 10, 9, 0, 0, 0, time.FixedZone("ICT", 7*60*60))

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu        sync.Mutex
	created   []string
	cancelled map[string]string // Booking id to reason
}

func (n *recordingNotifier) NotifyBookingCreated(ctx context.Context, bookingID, customerName, serviceName, date, startTime string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, bookingID)
	return nil
}

func (n *recordingNotifier) NotifyBookingCancelled(ctx context.Context, bookingID, customerName, date, reason, cancelledBy string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancelled == nil {
		n.cancelled = map[string]string{}
	}
	n.cancelled[bookingID] = reason
	return nil
}

type testEnv struct {
	svc      *Service
	store    store.Store
	events   *recordingPublisher
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    memory.New(),
		events:   &recordingPublisher{},
		notifier: &recordingNotifier{},
	}
	env.svc = New(&Config{
		Logger:              log.New(io.Discard, "", 0),
		Store:               env.store,
		Events:              env.events,
		NotificationService: env.notifier,
		Now:                 func() time.Time { return testNow },
		Retry:               RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})
	return env
}

func validCreateInput(i int) CreateInput {
	return CreateInput{
		Customer: CustomerInput{
			Name:    fmt.Sprintf("ลูกค้า %02d", i),
			Phone:   fmt.Sprintf("08%08d", i),
			Email:   fmt.Sprintf("customer%02d@example.com", i),
			Address: "99 ถนนสุขุมวิท กรุงเทพฯ",
		},
		Service:  ServiceInput{Type: store.ServiceTypeCleaning, Category: "regular"},
		Schedule: ScheduleInput{Date: "2025-10-20", StartTime: "09:00"},
	}
}

func (env *testEnv) create(t *testing.T, in CreateInput) *store.Booking {
	t.Helper()
	b, err := env.svc.CreateBooking(context.Background(), in, "admin-1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

func (env *testEnv) advance(t *testing.T, id string, statuses ...store.BookingStatus) *store.Booking {
	t.Helper()
	var b *store.Booking
	for _, status := range statuses {
		in := StatusChangeInput{BookingID: id, Status: status, UserID: "admin-1"}
		if status == store.BookingStatusCancelled {
			reason := string(store.CancellationReasonCustomerCancelled)
			in.Reason = &reason
		}
		var err error
		b, err = env.svc.UpdateStatus(context.Background(), in)
		if err != nil {
			t.Fatalf("UpdateStatus(%s): %v", status, err)
		}
	}
	return b
}

func strPtr(s string) *string { return &s }
