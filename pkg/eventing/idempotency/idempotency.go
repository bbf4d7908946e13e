// Package idempotency deduplicates at-least-once Pub/Sub deliveries.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type claimStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard records which events one consumer has handled. Keys look like
// emlak:idempotency:trigger:<consumer>:<event_id> and expire after ttl.
type Guard struct {
	store claimStore
	scope string
	ttl   time.Duration
	now   func() time.Time
}

func NewGuard(store claimStore, consumer string, ttl time.Duration) (*Guard, error) {
	consumer = strings.TrimSpace(consumer)
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, scope: "trigger:" + consumer, ttl: ttl, now: time.Now}, nil
}

// Claim reports false when an earlier delivery of eventID already claimed it.
func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	ok, err := g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return ok, nil
}

// Release drops a claim so the next redelivery is processed again.
func (g *Guard) Release(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID.String()), nil
}
