package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var testLimits = Limits{Admin: 4, Operator: 2, Window: time.Minute}

func newTestLimiter(clock *fakeClock) *MemoryLimiter {
	return NewMemoryLimiter(testLimits, WithClock(clock.Now), WithRandom(func() float64 { return 1 }))
}

func TestMemoryLimiter_RejectsOverLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Check(ctx, "u1", "operator")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !res.Allowed || res.Remaining != 1-i {
			t.Fatalf("request %d: unexpected result %+v", i+1, res)
		}
	}

	clock.Advance(20 * time.Second)
	res, _ := l.Check(ctx, "u1", "operator")
	if res.Allowed {
		t.Fatalf("expected third request to be rejected")
	}
	if res.RetryAfter != 40 || res.Remaining != 0 || res.Limit != 2 {
		t.Fatalf("unexpected rejection %+v", res)
	}

	other, _ := l.Check(ctx, "u2", "operator")
	if !other.Allowed {
		t.Fatalf("windows must be per principal")
	}
}

func TestMemoryLimiter_RoleLimits(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 6; i++ {
		if res, _ := l.Check(ctx, "admin-1", "admin"); res.Allowed {
			allowed++
		}
	}
	if allowed != 4 {
		t.Fatalf("expected 4 admin requests allowed, got %d", allowed)
	}

	if res, _ := l.Status(ctx, "someone", "staff"); res.Limit != 2 {
		t.Fatalf("expected unknown roles to get the operator limit, got %d", res.Limit)
	}
}

func TestMemoryLimiter_WindowExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	ctx := context.Background()

	l.Check(ctx, "u1", "operator")
	l.Check(ctx, "u1", "operator")

	clock.Advance(time.Minute)
	if res, _ := l.Check(ctx, "u1", "operator"); res.Allowed {
		t.Fatalf("window is still open at exactly its reset time")
	}

	clock.Advance(time.Millisecond)
	res, _ := l.Check(ctx, "u1", "operator")
	if !res.Allowed || res.Remaining != 1 {
		t.Fatalf("expected a fresh window, got %+v", res)
	}
	if !res.Reset.Equal(clock.now.Add(time.Minute)) {
		t.Fatalf("expected reset one window from now, got %v", res.Reset)
	}
}

func TestMemoryLimiter_StatusDoesNotCount(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	ctx := context.Background()

	fresh, _ := l.Status(ctx, "u1", "operator")
	if !fresh.Allowed || fresh.Remaining != 2 {
		t.Fatalf("unexpected fresh status %+v", fresh)
	}

	l.Check(ctx, "u1", "operator")
	for i := 0; i < 3; i++ {
		res, _ := l.Status(ctx, "u1", "operator")
		if res.Remaining != 1 {
			t.Fatalf("Status changed the count: %+v", res)
		}
	}

	l.Check(ctx, "u1", "operator")
	if res, _ := l.Status(ctx, "u1", "operator"); res.Allowed || res.Remaining != 0 {
		t.Fatalf("expected exhausted status, got %+v", res)
	}
}

func TestMemoryLimiter_Reset(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	ctx := context.Background()

	l.Check(ctx, "u1", "operator")
	l.Check(ctx, "u1", "operator")
	if err := l.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if res, _ := l.Check(ctx, "u1", "operator"); !res.Allowed || res.Remaining != 1 {
		t.Fatalf("expected a new window after reset, got %+v", res)
	}
}

func TestMemoryLimiter_SweepsExpiredWindows(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)}
	sweep := false
	l := NewMemoryLimiter(testLimits, WithClock(clock.Now), WithRandom(func() float64 {
		if sweep {
			return 0
		}
		return 1
	}))
	ctx := context.Background()

	l.Check(ctx, "u1", "operator")
	l.Check(ctx, "u2", "operator")
	clock.Advance(2 * time.Minute)
	l.Check(ctx, "u3", "operator")
	if l.size() != 3 {
		t.Fatalf("expected expired windows to stay until a sweep, got %d", l.size())
	}

	sweep = true
	l.Check(ctx, "u3", "operator")
	if l.size() != 1 {
		t.Fatalf("expected only the live window after a sweep, got %d", l.size())
	}
}

func TestRetryAfter_RoundsUp(t *testing.T) {
	now := time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		reset time.Duration
		want  int
	}{
		{1500 * time.Millisecond, 2},
		{time.Second, 1},
		{time.Millisecond, 1},
		{0, 0},
		{-time.Second, 0},
	}
	for _, tt := range tests {
		if got := retryAfter(now.Add(tt.reset), now); got != tt.want {
			t.Fatalf("retryAfter(%v) = %d, want %d", tt.reset, got, tt.want)
		}
	}
}

func TestLimits_For(t *testing.T) {
	if DefaultLimits.For("admin") != 20 || DefaultLimits.For("operator") != 10 || DefaultLimits.For("") != 10 {
		t.Fatalf("unexpected default limits %+v", DefaultLimits)
	}
}
