package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	"github.com/emlakofis/emlak-backend/pkg/mail"
)

// Delivery is everything a channel needs to hand one message to a recipient.
type Delivery struct {
	Event     Event
	Recipient Recipient
	Views     *Views
	Message   Message
}

// Channel delivers a rendered message over one route.
type Channel interface {
	Name() enums.NotificationChannel
	Deliver(ctx context.Context, d Delivery) error
}

type notificationCreator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// InAppChannel stores the durable, queryable notification record.
type InAppChannel struct {
	repo notificationCreator
	now  func() time.Time
}

func NewInAppChannel(repo notificationCreator) (*InAppChannel, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	return &InAppChannel{repo: repo, now: time.Now}, nil
}

func (c *InAppChannel) Name() enums.NotificationChannel { return enums.NotificationChannelInApp }

func (c *InAppChannel) Deliver(ctx context.Context, d Delivery) error {
	requestID := d.Event.RequestID
	record := &models.Notification{
		ID:          uuid.New(),
		RecipientID: d.Recipient.ID,
		Type:        d.Event.Type,
		Title:       d.Message.Title,
		Body:        d.Message.Body,
		RequestID:   &requestID,
		MatchID:     d.Event.MatchID,
		CreatedAt:   c.now().UTC(),
	}
	if d.Views != nil && d.Views.Match != nil {
		score := d.Views.Match.Score
		record.Score = &score
	}
	if len(d.Event.Extra) > 0 {
		record.Extra = datatypes.JSONMap(d.Event.Extra)
	}
	return c.repo.Create(ctx, record)
}

type mailSender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// EmailChannel sends the message through SMTP, throttled so bursts of
// matches do not trip relay limits.
type EmailChannel struct {
	sender       mailSender
	limiter      *rate.Limiter
	panelBaseURL string
}

type EmailChannelParams struct {
	Sender        mailSender
	RatePerSecond float64
	Burst         int
	PanelBaseURL  string
}

func NewEmailChannel(params EmailChannelParams) (*EmailChannel, error) {
	if params.Sender == nil {
		return nil, errors.New("mail sender required")
	}
	limit := rate.Inf
	if params.RatePerSecond > 0 {
		limit = rate.Limit(params.RatePerSecond)
	}
	burst := params.Burst
	if burst <= 0 {
		burst = 1
	}
	return &EmailChannel{
		sender:       params.Sender,
		limiter:      rate.NewLimiter(limit, burst),
		panelBaseURL: strings.TrimRight(strings.TrimSpace(params.PanelBaseURL), "/"),
	}, nil
}

func (c *EmailChannel) Name() enums.NotificationChannel { return enums.NotificationChannelEmail }

func (c *EmailChannel) Deliver(ctx context.Context, d Delivery) error {
	if strings.TrimSpace(d.Recipient.Email) == "" {
		return errors.New("recipient has no email address")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limiter: %w", err)
	}

	body := d.Message.Body
	if c.panelBaseURL != "" {
		body += fmt.Sprintf("\n\nDetay: %s/requests/%s", c.panelBaseURL, d.Event.RequestID)
	}
	return c.sender.Send(ctx, mail.Message{
		To:      d.Recipient.Email,
		ToName:  d.Recipient.FullName,
		Subject: d.Message.Subject,
		Body:    body,
	})
}
