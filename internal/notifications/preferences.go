package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
)

const defaultPreferenceTTL = 5 * time.Minute

type preferenceFinder interface {
	FindPreference(ctx context.Context, recipientID uuid.UUID, channel enums.NotificationChannel) (*models.NotificationPreference, error)
}

// Preferences answers whether a recipient wants a channel. Answers are
// cached in-process; an absent preference means enabled.
type Preferences struct {
	repo  preferenceFinder
	cache *gocache.Cache
}

func NewPreferences(repo preferenceFinder, ttl time.Duration) (*Preferences, error) {
	if repo == nil {
		return nil, errors.New("preference repository required")
	}
	if ttl <= 0 {
		ttl = defaultPreferenceTTL
	}
	return &Preferences{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}, nil
}

func (p *Preferences) Enabled(ctx context.Context, recipientID uuid.UUID, channel enums.NotificationChannel) (bool, error) {
	key := recipientID.String() + ":" + string(channel)
	if cached, ok := p.cache.Get(key); ok {
		return cached.(bool), nil
	}

	pref, err := p.repo.FindPreference(ctx, recipientID, channel)
	if err != nil {
		return false, err
	}
	enabled := pref == nil || pref.Enabled
	p.cache.Set(key, enabled, gocache.DefaultExpiration)
	return enabled, nil
}

// forget drops the cached answer for one recipient and channel.
func (p *Preferences) forget(recipientID uuid.UUID, channel enums.NotificationChannel) {
	p.cache.Delete(recipientID.String() + ":" + string(channel))
}
