package middleware

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tinedy-api/res/auth"
	"tinedy-api/res/ratelimit"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestCORSMiddleware_ProductionOrigins(t *testing.T) {
	handler := CORSMiddleware(CORSOptions{Environment: "production", AllowedOrigin: "https://admin.tinedy.com"})(okHandler)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://admin.tinedy.com", true},
		{"https://preview.admin.tinedy.com", true},
		{"http://preview.admin.tinedy.com", false},
		{"https://evil-admin.tinedy.com.example", false},
		{"https://example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		got := rec.Header().Get("Access-Control-Allow-Origin") == tt.origin
		if got != tt.allowed {
			t.Fatalf("origin %s: expected allowed=%v", tt.origin, tt.allowed)
		}
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := CORSMiddleware(CORSOptions{Environment: "development"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/v1/bookings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected preflight to short-circuit with 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" || rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("unexpected preflight headers %v", rec.Header())
	}
}

func TestCSPMiddleware_HSTSOnlyOverHTTPS(t *testing.T) {
	handler := CSPMiddleware()(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain http")
	}
	if rec.Header().Get("Content-Security-Policy") != apiContentSecurityPolicy {
		t.Fatalf("missing CSP header")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("expected HSTS behind a TLS terminating proxy")
	}
}

func TestRequireRoles(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	handler := RequireRoles(logger, auth.RoleAdmin)(okHandler)

	tests := []struct {
		principal *auth.Principal
		want      int
	}{
		{nil, http.StatusUnauthorized},
		{&auth.Principal{UID: "u1", Role: auth.RoleViewer}, http.StatusForbidden},
		{&auth.Principal{UID: "u2", Role: auth.RoleAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.principal != nil {
			req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("principal %+v: expected %d, got %d", tt.principal, tt.want, rec.Code)
		}
	}
}

type failingLimiter struct{}

func (failingLimiter) Check(ctx context.Context, principalID, role string) (ratelimit.Result, error) {
	return ratelimit.Result{}, context.DeadlineExceeded
}

func (failingLimiter) Status(ctx context.Context, principalID, role string) (ratelimit.Result, error) {
	return ratelimit.Result{}, context.DeadlineExceeded
}

func (failingLimiter) Reset(ctx context.Context, principalID string) error { return nil }

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	handler := RateLimitMiddleware(log.New(io.Discard, "", 0), failingLimiter{})(okHandler)

	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &auth.Principal{UID: "u1", Role: auth.RoleOperator}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected limiter failure to let the request through, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_DefaultRetryAfter(t *testing.T) {
	now := time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Limits{Admin: 1, Operator: 1, Window: time.Minute},
		ratelimit.WithClock(func() time.Time { return now }))
	handler := RateLimitMiddleware(log.New(io.Discard, "", 0), limiter)(okHandler)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), &auth.Principal{UID: "u1", Role: auth.RoleOperator}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusNoContent {
		t.Fatalf("expected first request through, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected 429 with Retry-After 60, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}
