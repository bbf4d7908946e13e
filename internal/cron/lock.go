package cron

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = time.Hour

// Lock makes a cron cycle exclusive across cron-worker instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, token string) (bool, error)
}

// RedisLock is a lease on a single redis key. Each acquisition writes a fresh
// token and release deletes the key only while it still carries that token,
// so a lease that expired and was taken over elsewhere survives.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token atomic.Pointer[string]
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token.Store(&token)
	}
	return ok, nil
}

// Release is a no-op when this instance holds no lease.
func (l *RedisLock) Release(ctx context.Context) error {
	token := l.token.Swap(nil)
	if token == nil {
		return nil
	}
	if _, err := l.store.ReleaseIfOwner(ctx, l.key, *token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
