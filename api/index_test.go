package api

import (
	"testing"
	"time"
)

func TestNotificationTimeout(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", 5 * time.Second},
		{"12", 12 * time.Second},
		{"abc", 5 * time.Second},
		{"5s", 5 * time.Second},
		{"0", 5 * time.Second},
		{"-3", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("SLACK_TIMEOUT_SECONDS", tt.raw)
		if got := notificationTimeout(); got != tt.want {
			t.Fatalf("SLACK_TIMEOUT_SECONDS=%q: got %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestReadOptionalIntEnvVar(t *testing.T) {
	t.Setenv("RATE_LIMIT_ADMIN", "30")
	if got := readOptionalIntEnvVar("RATE_LIMIT_ADMIN", 20); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	t.Setenv("RATE_LIMIT_ADMIN", "thirty")
	if got := readOptionalIntEnvVar("RATE_LIMIT_ADMIN", 20); got != 20 {
		t.Fatalf("expected the default for a malformed value, got %d", got)
	}
}
