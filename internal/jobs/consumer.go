package jobs

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/internal/notifications"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/eventing"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// TriggerConsumerName scopes the idempotency claims of the trigger consumer.
const TriggerConsumerName = "match-triggers"

type jobSubmitter interface {
	Submit(ctx context.Context, job Job) (uuid.UUID, error)
}

type idempotencyGuard interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

type eventNotifier interface {
	Notify(ctx context.Context, event notifications.Event) error
}

// TriggerConsumer turns messages on the trigger subscription into jobs.
type TriggerConsumer struct {
	subscription *pubsub.Subscriber
	jobs         jobSubmitter
	guard        idempotencyGuard
	notifier     eventNotifier
	logg         *logger.Logger
}

type TriggerConsumerParams struct {
	Subscription *pubsub.Subscriber
	Jobs         jobSubmitter
	Guard        idempotencyGuard
	Notifier     eventNotifier
	Logger       *logger.Logger
}

func NewTriggerConsumer(params TriggerConsumerParams) (*TriggerConsumer, error) {
	if params.Subscription == nil {
		return nil, errors.New("trigger subscription required")
	}
	return newTriggerConsumer(params)
}

func newTriggerConsumer(params TriggerConsumerParams) (*TriggerConsumer, error) {
	if params.Jobs == nil {
		return nil, errors.New("job dispatcher required")
	}
	if params.Guard == nil {
		return nil, errors.New("idempotency guard required")
	}
	if params.Notifier == nil {
		return nil, errors.New("notifier required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &TriggerConsumer{
		subscription: params.Subscription,
		jobs:         params.Jobs,
		guard:        params.Guard,
		notifier:     params.Notifier,
		logg:         params.Logger,
	}, nil
}

// Run receives until ctx is cancelled.
func (c *TriggerConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) == outcomeNack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeNack
)

func (c *TriggerConsumer) process(ctx context.Context, msg *pubsub.Message) outcome {
	ctx = c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes[eventing.AttrEventType],
	})

	env, eventID, err := eventing.ParseEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(ctx, "dropping malformed trigger", err)
		return outcomeAck
	}
	ctx = c.logg.WithField(ctx, "event_id", eventID.String())

	if !env.EventType.IsValid() {
		c.logg.Info(ctx, "skipping unknown trigger event")
		return outcomeAck
	}

	claimed, err := c.guard.Claim(ctx, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return outcomeNack
	}
	if !claimed {
		c.logg.Info(ctx, "trigger already processed")
		return outcomeAck
	}

	if err := c.handle(ctx, env); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			c.logg.Error(ctx, "dropping invalid trigger", err)
			return outcomeAck
		}
		c.logg.Error(ctx, "trigger handling failed", err)
		if relErr := c.guard.Release(ctx, eventID); relErr != nil {
			c.logg.Error(ctx, "failed to release idempotency claim", relErr)
		}
		return outcomeNack
	}
	return outcomeAck
}

func (c *TriggerConsumer) handle(ctx context.Context, env eventing.Envelope) error {
	switch env.EventType {
	case enums.TriggerMatchRequested:
		var payload eventing.MatchRequested
		if err := env.Decode(&payload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode match request")
		}
		reason := payload.Reason
		if reason == "" {
			reason = "manual"
		}
		return c.submit(ctx, NewMatchRequestJob(payload.RequestID, reason))

	case enums.TriggerCriteriaChanged:
		var payload eventing.CriteriaChanged
		if err := env.Decode(&payload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode criteria change")
		}
		if err := c.submit(ctx, NewMatchRequestJob(payload.RequestID, "criteria_changed")); err != nil {
			return err
		}
		event := notifications.Event{
			Type:       enums.NotificationTypeRequestUpdated,
			RequestID:  payload.RequestID,
			Extra:      map[string]any{"changed_fields": payload.ChangedFields},
			OccurredAt: env.OccurredAt,
		}
		if err := c.notifier.Notify(ctx, event); err != nil {
			c.logg.Error(ctx, "failed to queue request-updated notification", err)
		}
		return nil

	case enums.TriggerMatchAllRequested:
		var payload eventing.MatchAllRequested
		if err := env.Decode(&payload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode match-all request")
		}
		reason := payload.Reason
		if reason == "" {
			reason = "manual"
		}
		return c.submit(ctx, NewMatchAllJob(reason))
	}
	return nil
}

func (c *TriggerConsumer) submit(ctx context.Context, job Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	id, err := c.jobs.Submit(ctx, job)
	if err != nil {
		return err
	}
	c.logg.Info(c.logg.WithField(ctx, "job_id", id.String()), "trigger converted to job")
	return nil
}
