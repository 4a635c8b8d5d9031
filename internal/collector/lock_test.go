package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLockClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRunLockExcludesConcurrentRuns(t *testing.T) {
	client, _ := newLockClient(t)
	lock := NewRunLock(client, time.Minute)

	release, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := lock.Acquire(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second acquire err = %v, want ErrAlreadyRunning", err)
	}

	release()
	release2, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestRunLockExpiresWithTTL(t *testing.T) {
	client, mr := newLockClient(t)
	lock := NewRunLock(client, time.Minute)

	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	release, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after ttl expiry: %v", err)
	}
	release()
}
