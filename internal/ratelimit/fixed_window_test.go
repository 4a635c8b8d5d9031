package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, limit int, window time.Duration) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l, err := New(client, "test:ratelimit", limit, window)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, mr
}

func TestAllowWithinQuota(t *testing.T) {
	l, _ := newLimiter(t, 3, time.Minute)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "registry") {
			t.Fatalf("request %d rejected within quota", i+1)
		}
	}
	if l.Allow(ctx, "registry") {
		t.Fatalf("request above quota allowed")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l, _ := newLimiter(t, 1, time.Minute)
	ctx := context.Background()
	if !l.Allow(ctx, "registry") {
		t.Fatalf("first key rejected")
	}
	if !l.Allow(ctx, "other") {
		t.Fatalf("independent key rejected")
	}
}

func TestAllowFailsClosedWithoutRedis(t *testing.T) {
	l, mr := newLimiter(t, 5, time.Minute)
	mr.Close()
	if l.Allow(context.Background(), "registry") {
		t.Fatalf("limiter must fail closed when redis is unreachable")
	}
}

func TestNewRejectsBadArguments(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	if _, err := New(nil, "p", 1, time.Minute); err == nil {
		t.Fatalf("nil client accepted")
	}
	if _, err := New(client, "p", 0, time.Minute); err == nil {
		t.Fatalf("zero limit accepted")
	}
	if _, err := New(client, "p", 1, 0); err == nil {
		t.Fatalf("zero window accepted")
	}
}
