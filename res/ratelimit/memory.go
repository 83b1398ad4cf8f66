package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// sweepProbability is the chance that a Check also drops expired windows
const sweepProbability = 0.01

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process. Each instance of the API counts on its own.
type MemoryLimiter struct {
	limits Limits

	mu      sync.Mutex
	windows map[string]*window

	now    func() time.Time
	random func() float64
}

type MemoryOption func(*MemoryLimiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// WithRandom replaces the random source deciding when expired windows are swept
func WithRandom(random func() float64) MemoryOption {
	return func(l *MemoryLimiter) { l.random = random }
}

func NewMemoryLimiter(limits Limits, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		limits:  limits,
		windows: map[string]*window{},
		now:     time.Now,
		random:  rand.Float64,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) Check(ctx context.Context, principalID, role string) (Result, error) {
	limit := l.limits.For(role)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.random() < sweepProbability {
		l.sweep(now)
	}

	w, ok := l.windows[principalID]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(l.limits.Window)}
		l.windows[principalID] = w
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1, Reset: w.resetAt}, nil
	}

	if w.count >= limit {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			Reset:      w.resetAt,
			RetryAfter: retryAfter(w.resetAt, now),
		}, nil
	}

	w.count++
	return Result{Allowed: true, Limit: limit, Remaining: limit - w.count, Reset: w.resetAt}, nil
}

func (l *MemoryLimiter) Status(ctx context.Context, principalID, role string) (Result, error) {
	limit := l.limits.For(role)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[principalID]
	if !ok || now.After(w.resetAt) {
		return Result{Allowed: true, Limit: limit, Remaining: limit, Reset: now.Add(l.limits.Window)}, nil
	}
	return Result{
		Allowed:   w.count < limit,
		Limit:     limit,
		Remaining: max(0, limit-w.count),
		Reset:     w.resetAt,
	}, nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, principalID string) error {
	l.mu.Lock()
	delete(l.windows, principalID)
	l.mu.Unlock()
	return nil
}

// sweep must be called with mu held
func (l *MemoryLimiter) sweep(now time.Time) {
	for id, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, id)
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
