package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
)

const (
	defaultQueueSize       = 512
	defaultWorkers         = 2
	defaultDeliveryTimeout = 30 * time.Second
	defaultDrainTimeout    = 10 * time.Second
)

type preferenceChecker interface {
	Enabled(ctx context.Context, recipientID uuid.UUID, channel enums.NotificationChannel) (bool, error)
}

// Dispatcher queues notification events and fans them out to channels from
// a worker pool. The in-app record is always written; email goes out unless
// the recipient opted out. A failing channel never blocks the other.
type Dispatcher struct {
	queue           chan Event
	loader          ViewLoader
	inApp           Channel
	email           Channel
	prefs           preferenceChecker
	metrics         *metrics.NotificationMetrics
	logg            *logger.Logger
	workers         int
	deliveryTimeout time.Duration
	drainTimeout    time.Duration
	now             func() time.Time
}

type DispatcherParams struct {
	Loader ViewLoader
	InApp  Channel
	// Email is optional; a nil channel disables email delivery.
	Email           Channel
	Preferences     preferenceChecker
	Metrics         *metrics.NotificationMetrics
	Logger          *logger.Logger
	Workers         int
	QueueSize       int
	DeliveryTimeout time.Duration
	Now             func() time.Time
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Loader == nil {
		return nil, errors.New("view loader required")
	}
	if params.InApp == nil {
		return nil, errors.New("in-app channel required")
	}
	if params.Email != nil && params.Preferences == nil {
		return nil, errors.New("preferences required when email is enabled")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := params.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		queue:           make(chan Event, size),
		loader:          params.Loader,
		inApp:           params.InApp,
		email:           params.Email,
		prefs:           params.Preferences,
		metrics:         params.Metrics,
		logg:            params.Logger,
		workers:         workers,
		deliveryTimeout: timeout,
		drainTimeout:    defaultDrainTimeout,
		now:             now,
	}, nil
}

// Notify enqueues event without waiting for delivery. A full queue is a
// dependency error so callers can log it; the event is dropped.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	if event.RequestID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification request id required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now().UTC()
	}
	select {
	case d.queue <- event:
		return nil
	default:
		d.metrics.IncDropped()
		return pkgerrors.New(pkgerrors.CodeDependency, "notification queue full").
			WithDetails(map[string]any{"type": event.Type, "request_id": event.RequestID})
	}
}

// Run starts the workers and blocks until ctx is done. Events still queued
// at shutdown get a short grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	d.logg.Info(d.logg.WithField(ctx, "workers", d.workers), "notification dispatcher started")

	<-ctx.Done()
	wg.Wait()
	d.drain(context.WithoutCancel(ctx))
	return ctx.Err()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.handle(context.WithoutCancel(ctx), event)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-d.queue:
			d.handle(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()
	if err := d.Deliver(ctx, event); err != nil {
		d.logg.Error(ctx, "notification delivery incomplete", err)
	}
}

// Deliver renders event and sends it over every applicable channel. The
// returned error combines per-channel NOTIFICATION_DELIVERY_ERRORs.
func (d *Dispatcher) Deliver(ctx context.Context, event Event) error {
	fields := map[string]any{
		"notification_type":   string(event.Type),
		"customer_request_id": event.RequestID.String(),
	}
	if event.MatchID != nil {
		fields["match_id"] = event.MatchID.String()
	}
	ctx = d.logg.WithFields(ctx, fields)

	views, err := d.loader.Load(ctx, event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification views")
	}
	if views == nil {
		d.logg.Warn(ctx, "notification skipped: customer request not found")
		return nil
	}
	if views.Recipient == nil {
		d.logg.Warn(ctx, "notification skipped: request has no active personnel assigned")
		return nil
	}

	delivery := Delivery{
		Event:     event,
		Recipient: *views.Recipient,
		Views:     views,
		Message:   Render(event.Type, views.Request, views.Match, event.Extra),
	}
	ctx = d.logg.WithField(ctx, "recipient_id", views.Recipient.ID.String())

	var errs error
	errs = multierr.Append(errs, d.send(ctx, d.inApp, delivery))

	if d.email != nil {
		enabled, err := d.prefs.Enabled(ctx, views.Recipient.ID, enums.NotificationChannelEmail)
		if err != nil {
			d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "preference lookup failed, using channel default")
			enabled = true
		}
		if enabled {
			errs = multierr.Append(errs, d.send(ctx, d.email, delivery))
		} else {
			d.metrics.IncDelivery(string(enums.NotificationChannelEmail), string(event.Type), "opted_out")
		}
	}
	return errs
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, delivery Delivery) error {
	channel := string(ch.Name())
	ctx = d.logg.WithField(ctx, "channel", channel)

	if err := ch.Deliver(ctx, delivery); err != nil {
		d.metrics.IncDelivery(channel, string(delivery.Event.Type), "failed")
		wrapped := pkgerrors.Wrap(pkgerrors.CodeNotificationDelivery, err, channel+" delivery failed")
		d.logg.Error(ctx, "notification channel failed", wrapped)
		return wrapped
	}
	d.metrics.IncDelivery(channel, string(delivery.Event.Type), "delivered")
	d.logg.Debug(ctx, "notification delivered")
	return nil
}
