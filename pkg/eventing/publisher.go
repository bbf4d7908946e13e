package eventing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const (
	// AttrEventType and AttrEventID are set on every published message so
	// consumers can route before decoding the body.
	AttrEventType = "event_type"
	AttrEventID   = "event_id"

	defaultPublishTimeout = 15 * time.Second
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// Publisher sends trigger envelopes to the matching topic.
type Publisher struct {
	pub     publisher
	logg    *logger.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewPublisher(topic *gcppubsub.Publisher, logg *logger.Logger) (*Publisher, error) {
	if topic == nil {
		return nil, errors.New("trigger publisher required")
	}
	return newPublisher(&gcpPublisher{Publisher: topic}, logg, time.Now)
}

func newPublisher(pub publisher, logg *logger.Logger, now func() time.Time) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if now == nil {
		now = time.Now
	}
	return &Publisher{pub: pub, logg: logg, now: now, timeout: defaultPublishTimeout}, nil
}

// Publish wraps payload in an envelope and waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, eventType enums.TriggerEventType, actor *ActorRef, payload any) (uuid.UUID, error) {
	env, err := NewEnvelope(eventType, actor, payload, p.now())
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build trigger envelope")
	}
	body, err := json.Marshal(env)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode trigger envelope")
	}

	ctx = p.logg.WithFields(ctx, map[string]any{
		"event_id":   env.EventID,
		"event_type": string(eventType),
	})

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := p.pub.Publish(publishCtx, &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			AttrEventType: string(eventType),
			AttrEventID:   env.EventID,
		},
	})
	if result == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeDependency, "publish returned no result")
	}
	serverID, err := result.Get(publishCtx)
	if err != nil {
		p.logg.Error(ctx, "trigger publish failed", err)
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish trigger")
	}

	p.logg.Info(p.logg.WithField(ctx, "message_id", serverID), "trigger published")
	return uuid.MustParse(env.EventID), nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
