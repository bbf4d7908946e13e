package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore mimics SETNX semantics in memory.
type memoryStore struct {
	keys   map[string]any
	ttls   map[string]time.Duration
	failed error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.failed != nil {
		return false, m.failed
	}
	if _, taken := m.keys[key]; taken {
		return false, nil
	}
	m.keys[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "emlak:idempotency:" + scope + ":" + id
}

func TestGuardClaimOncePerEvent(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, " match-triggers ", 24*time.Hour)
	require.NoError(t, err)
	guard.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	eventID := uuid.New()
	key := "emlak:idempotency:trigger:match-triggers:" + eventID.String()

	first, err := guard.Claim(context.Background(), eventID)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, "2026-03-01T09:00:00Z", store.keys[key])
	assert.Equal(t, 24*time.Hour, store.ttls[key])

	again, err := guard.Claim(context.Background(), eventID)
	require.NoError(t, err)
	assert.False(t, again, "redelivery must not be claimed twice")

	other, err := guard.Claim(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, other)
}

func TestGuardReleaseAllowsRedelivery(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, "match-triggers", time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	_, err = guard.Claim(context.Background(), eventID)
	require.NoError(t, err)
	require.NoError(t, guard.Release(context.Background(), eventID))

	claimed, err := guard.Claim(context.Background(), eventID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestGuardErrors(t *testing.T) {
	store := newMemoryStore()
	store.failed = errors.New("redis down")
	guard, err := NewGuard(store, "match-triggers", time.Hour)
	require.NoError(t, err)

	_, err = guard.Claim(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.failed)

	_, err = guard.Claim(context.Background(), uuid.Nil)
	require.Error(t, err)
	require.Error(t, guard.Release(context.Background(), uuid.Nil))

	_, err = NewGuard(nil, "match-triggers", time.Hour)
	require.Error(t, err)
	_, err = NewGuard(store, "  ", time.Hour)
	require.Error(t, err)
	_, err = NewGuard(store, "match-triggers", -time.Second)
	require.Error(t, err)
}
