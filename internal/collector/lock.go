package collector

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKey = "convwatch:collector:lock"

// ErrAlreadyRunning means another collection run holds the lock.
var ErrAlreadyRunning = errors.New("collector: run already in progress")

// RunLock serializes collection runs across processes. The TTL guards against
// a crashed holder keeping the lock forever.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl}
}

// Acquire takes the lock and returns its release function.
func (l *RunLock) Acquire(ctx context.Context) (func(), error) {
	ok, err := l.client.SetNX(ctx, lockKey, "1", l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	release := func() {
		l.client.Del(context.Background(), lockKey)
	}
	return release, nil
}
