package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const (
	lockScope            = "match-request"
	defaultLockTTL       = 6 * time.Minute
	defaultLockRetryWait = 150 * time.Millisecond
)

// Locker serializes matching runs per request. The returned release func must
// be called exactly once.
type Locker interface {
	Lock(ctx context.Context, requestID uuid.UUID) (func(), error)
}

// LocalLocker is a keyed mutex for runs inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]*keyedLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, requestID uuid.UUID) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[requestID]
	if !ok {
		entry = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[requestID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(requestID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.drop(requestID, entry)
		})
	}, nil
}

func (l *LocalLocker) drop(requestID uuid.UUID, entry *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, requestID)
	}
}

// redisLockStore is the subset of the redis client the distributed lock uses.
type redisLockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, token string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker extends LocalLocker across worker instances with a Redis
// SETNX lease. The lease TTL must outlive a job attempt.
type RedisLocker struct {
	local     *LocalLocker
	store     redisLockStore
	ttl       time.Duration
	retryWait time.Duration
	logg      *logger.Logger
}

type RedisLockerParams struct {
	Store     redisLockStore
	TTL       time.Duration
	RetryWait time.Duration
	Logger    *logger.Logger
}

func NewRedisLocker(params RedisLockerParams) (*RedisLocker, error) {
	if params.Store == nil {
		return nil, errors.New("redis store required for matching lock")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	wait := params.RetryWait
	if wait <= 0 {
		wait = defaultLockRetryWait
	}
	return &RedisLocker{
		local:     NewLocalLocker(),
		store:     params.Store,
		ttl:       ttl,
		retryWait: wait,
		logg:      params.Logger,
	}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, requestID uuid.UUID) (func(), error) {
	releaseLocal, err := l.local.Lock(ctx, requestID)
	if err != nil {
		return nil, err
	}

	key := l.store.LockKey(lockScope, requestID.String())
	token := uuid.NewString()
	ticker := time.NewTicker(l.retryWait)
	defer ticker.Stop()

	for {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			releaseLocal()
			return nil, fmt.Errorf("acquire match lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			releaseLocal()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled by a timeout.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := l.store.ReleaseIfOwner(releaseCtx, key, token); err != nil {
				l.logg.Warn(l.logg.WithField(ctx, "lock_key", key), "failed to release match lock")
			}
			releaseLocal()
		})
	}, nil
}
