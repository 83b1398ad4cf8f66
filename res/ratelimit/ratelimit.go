package ratelimit

import (
	"context"
	"time"
)

// Limits sets the requests allowed per window for each role
type Limits struct {
	Admin    int
	Operator int
	Window   time.Duration
}

var DefaultLimits = Limits{Admin: 20, Operator: 10, Window: time.Minute}

// For returns the per-window limit of role. Roles without their own limit get the
// operator limit.
func (l Limits) For(role string) int {
	if role == "admin" {
		return l.Admin
	}
	return l.Operator
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time // End of the current window
	RetryAfter int       // Seconds, set when Allowed is false
}

// Limiter counts mutations per principal in fixed windows
type Limiter interface {
	// Check counts one request and reports whether it is allowed
	Check(ctx context.Context, principalID, role string) (Result, error)

	// Status reports the current window without counting a request
	Status(ctx context.Context, principalID, role string) (Result, error)

	// Reset drops the principal's current window
	Reset(ctx context.Context, principalID string) error
}

func retryAfter(reset, now time.Time) int {
	d := reset.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
