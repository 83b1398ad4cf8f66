package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tinedy-api/res/events"
	"tinedy-api/res/store"
)

func TestUpdateStatus_FullLifecycleAppendsHistory(t *testing.T) {
	env := newTestEnv(t)
	b := env.create(t, validCreateInput(1))

	steps := []store.BookingStatus{store.BookingStatusConfirmed, store.BookingStatusInProgress, store.BookingStatusCompleted}
	for i, status := range steps {
		updated := env.advance(t, b.ID, status)

		if updated.Status != status {
			t.Fatalf("expected status %s, got %s", status, updated.Status)
		}
		if len(updated.StatusHistory) != i+2 {
			t.Fatalf("expected %d history entries, got %d", i+2, len(updated.StatusHistory))
		}
		last := updated.StatusHistory[len(updated.StatusHistory)-1]
		if last.Status != status || last.ChangedBy != "admin-1" || !last.ChangedAt.Equal(testNow) {
			t.Fatalf("unexpected last history entry %+v", last)
		}
	}

	final, err := env.svc.GetBooking(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if final.CompletedAt == nil || final.CancelledAt != nil {
		t.Fatalf("expected only completedAt to be set, got completed=%v cancelled=%v", final.CompletedAt, final.CancelledAt)
	}
}

func TestUpdateStatus_CancelReleasesStaffAndKeepsReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.create(t, validCreateInput(1))
	env.advance(t, b.ID, store.BookingStatusConfirmed)

	if _, err := env.svc.AssignStaff(ctx, b.ID, "staff-7", "สมศรี", "admin-1"); err != nil {
		t.Fatalf("AssignStaff: %v", err)
	}

	cancelled, err := env.svc.UpdateStatus(ctx, StatusChangeInput{
		BookingID: b.ID,
		Status:    store.BookingStatusCancelled,
		Reason:    strPtr(string(store.CancellationReasonStaffUnavailable)),
		Notes:     strPtr("ลูกค้าแจ้งล่วงหน้า"),
		UserID:    "operator-2",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if cancelled.AssignedTo() != nil || cancelled.AssignedStaffName != nil || cancelled.AssignedAt != nil {
		t.Fatalf("expected assignment to be cleared, got %+v", cancelled.AssignedTo())
	}
	if cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelledAt to be set")
	}
	last := cancelled.StatusHistory[len(cancelled.StatusHistory)-1]
	if last.Reason == nil || *last.Reason != "staff_unavailable" {
		t.Fatalf("expected cancellation reason in history, got %v", last.Reason)
	}
	if last.Notes == nil || *last.Notes != "ลูกค้าแจ้งล่วงหน้า" {
		t.Fatalf("expected notes in history, got %v", last.Notes)
	}
	if env.notifier.cancelled[b.ID] != "staff_unavailable" {
		t.Fatalf("expected cancellation notification, got %v", env.notifier.cancelled)
	}
}

func TestUpdateStatus_ReasonIgnoredOutsideCancellation(t *testing.T) {
	env := newTestEnv(t)
	b := env.create(t, validCreateInput(1))

	updated, err := env.svc.UpdateStatus(context.Background(), StatusChangeInput{
		BookingID: b.ID,
		Status:    store.BookingStatusConfirmed,
		Reason:    strPtr("other"),
		UserID:    "admin-1",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if last := updated.StatusHistory[len(updated.StatusHistory)-1]; last.Reason != nil {
		t.Fatalf("expected no reason on confirmation, got %q", *last.Reason)
	}
}

func TestUpdateStatus_TerminalBookingIsImmutable(t *testing.T) {
	env := newTestEnv(t)
	b := env.create(t, validCreateInput(1))
	env.advance(t, b.ID, store.BookingStatusCancelled)

	for _, status := range allStatuses {
		_, err := env.svc.UpdateStatus(context.Background(), StatusChangeInput{BookingID: b.ID, Status: status, UserID: "admin-1"})

		var terminal *TerminalStateError
		if !errors.As(err, &terminal) {
			t.Fatalf("expected TerminalStateError for %s, got %v", status, err)
		}
		if terminal.Current != store.BookingStatusCancelled || terminal.Requested != status {
			t.Fatalf("unexpected error fields %+v", terminal)
		}
	}

	after, err := env.svc.GetBooking(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if len(after.StatusHistory) != 2 {
		t.Fatalf("expected history to stay at 2 entries, got %d", len(after.StatusHistory))
	}
}

func TestUpdateStatus_InvalidTransitionListsAllowed(t *testing.T) {
	env := newTestEnv(t)
	b := env.create(t, validCreateInput(1))

	_, err := env.svc.UpdateStatus(context.Background(), StatusChangeInput{BookingID: b.ID, Status: store.BookingStatusCompleted, UserID: "admin-1"})

	var transition *InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if len(transition.Allowed) != 2 || transition.Allowed[0] != store.BookingStatusConfirmed || transition.Allowed[1] != store.BookingStatusCancelled {
		t.Fatalf("unexpected allowed transitions %v", transition.Allowed)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.UpdateStatus(context.Background(), StatusChangeInput{BookingID: "bkg_missing", Status: store.BookingStatusConfirmed, UserID: "admin-1"})
	if !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestUpdateStatus_ConcurrentTransitionsSerialize(t *testing.T) {
	env := newTestEnv(t)
	b := env.create(t, validCreateInput(1))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.UpdateStatus(context.Background(), StatusChangeInput{BookingID: b.ID, Status: store.BookingStatusConfirmed, UserID: "admin-1"})

			mu.Lock()
			defer mu.Unlock()
			var transition *InvalidTransitionError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &transition):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != workers-1 {
		t.Fatalf("expected exactly one winner, got %d succeeded and %d rejected", succeeded, rejected)
	}

	after, err := env.svc.GetBooking(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if len(after.StatusHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(after.StatusHistory))
	}
}

func TestUpdateStatus_PublishesStatusChanged(t *testing.T) {
	env := newTestEnv(t)
	b := env.create(t, validCreateInput(1))
	env.advance(t, b.ID, store.BookingStatusConfirmed)

	types := env.events.types()
	if len(types) != 2 || types[0] != events.TypeBookingCreated || types[1] != events.TypeBookingStatusChanged {
		t.Fatalf("unexpected events %v", types)
	}
	last := env.events.events[1]
	if last.Data["from"] != store.BookingStatusPending || last.Data["to"] != store.BookingStatusConfirmed {
		t.Fatalf("unexpected event data %v", last.Data)
	}
}
