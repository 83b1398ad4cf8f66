package ratelimit

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLimiter(client, testLimits, log.New(io.Discard, "", 0))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Check(ctx, "u1", "operator")
		if err != nil {
			t.Fatalf("Check must not fail when redis is down: %v", err)
		}
		if !res.Allowed || res.Limit != 2 {
			t.Fatalf("expected request to be allowed, got %+v", res)
		}
	}

	if _, err := l.Status(ctx, "u1", "operator"); err == nil {
		t.Fatalf("expected Status to report the redis error")
	}
}

func TestRedisLimiter_Key(t *testing.T) {
	l := NewRedisLimiter(nil, DefaultLimits, log.New(io.Discard, "", 0))
	if got := l.key("user-1"); got != "ratelimit:user-1" {
		t.Fatalf("unexpected key %s", got)
	}
}
