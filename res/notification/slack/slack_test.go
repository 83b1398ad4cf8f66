package slack

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNotifyBookingCancelled_PostsBlocks(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, log.New(io.Discard, "", 0))
	if err := n.NotifyBookingCancelled(context.Background(), "bkg_1", "สมชาย", "2025-10-20", "customer_cancelled", "admin-1"); err != nil {
		t.Fatalf("NotifyBookingCancelled: %v", err)
	}

	if !strings.Contains(got.Text, "bkg_1") || !strings.Contains(got.Text, "*Reason:* customer_cancelled") {
		t.Fatalf("unexpected fallback text %q", got.Text)
	}
	if len(got.Blocks) != 2 || got.Blocks[0].Type != "header" || len(got.Blocks[1].Fields) != 4 {
		t.Fatalf("unexpected blocks %+v", got.Blocks)
	}
}

func TestNotify_ReportsWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, log.New(io.Discard, "", 0))
	err := n.NotifyBookingCreated(context.Background(), "bkg_1", "สมชาย", "Deep Cleaning", "2025-10-20", "09:00")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected the webhook status in the error, got %v", err)
	}
}

func TestNotify_SkipsWithoutWebhook(t *testing.T) {
	n := New("", time.Second, log.New(io.Discard, "", 0))
	if err := n.NotifyBookingCreated(context.Background(), "bkg_1", "a", "b", "c", "d"); err != nil {
		t.Fatalf("expected a no-op without webhook, got %v", err)
	}
}
