package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

type stubLoader struct {
	views *Views
	err   error
}

func (s stubLoader) Load(context.Context, Event) (*Views, error) {
	return s.views, s.err
}

type fakeChannel struct {
	name enums.NotificationChannel
	err  error

	mu        sync.Mutex
	delivered []Delivery
}

func (f *fakeChannel) Name() enums.NotificationChannel { return f.name }

func (f *fakeChannel) Deliver(_ context.Context, d Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, d)
	return nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

type stubPreferences struct {
	enabled bool
	err     error
}

func (s stubPreferences) Enabled(context.Context, uuid.UUID, enums.NotificationChannel) (bool, error) {
	return s.enabled, s.err
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	inApp      *fakeChannel
	email      *fakeChannel
}

func newDispatcherFixture(t *testing.T, loader ViewLoader, prefs preferenceChecker) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		inApp: &fakeChannel{name: enums.NotificationChannelInApp},
		email: &fakeChannel{name: enums.NotificationChannelEmail},
	}
	d, err := NewDispatcher(DispatcherParams{
		Loader:      loader,
		InApp:       f.inApp,
		Email:       f.email,
		Preferences: prefs,
		Logger:      logger.Nop(),
		QueueSize:   2,
	})
	require.NoError(t, err)
	f.dispatcher = d
	return f
}

func assignedViews() *Views {
	return &Views{
		Recipient: &Recipient{ID: uuid.New(), FullName: "Zeynep Arslan", Email: "zeynep@emlak.test"},
		Request:   RequestView{CustomerName: "Ali Demir", SubCategory: "villa"},
	}
}

func newMatchEvent() Event {
	return Event{Type: enums.NotificationTypeNewMatch, RequestID: uuid.New(), Extra: map[string]any{"new_count": 1}}
}

func TestNewDispatcherValidation(t *testing.T) {
	_, err := NewDispatcher(DispatcherParams{})
	require.Error(t, err)

	_, err = NewDispatcher(DispatcherParams{
		Loader: stubLoader{},
		InApp:  &fakeChannel{},
		Email:  &fakeChannel{},
		Logger: logger.Nop(),
	})
	require.Error(t, err, "email without preferences")
}

func TestDeliver_FansOutToBothChannels(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{views: assignedViews()}, stubPreferences{enabled: true})

	require.NoError(t, f.dispatcher.Deliver(context.Background(), newMatchEvent()))

	require.Equal(t, 1, f.inApp.count())
	require.Equal(t, 1, f.email.count())
	delivered := f.inApp.delivered[0]
	assert.Equal(t, "Yeni eşleşme", delivered.Message.Title)
	assert.Contains(t, delivered.Message.Body, "Ali Demir adlı müşterinin villa talebi")
	assert.Equal(t, "Zeynep Arslan", delivered.Recipient.FullName)
}

func TestDeliver_EmailFailureKeepsInApp(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{views: assignedViews()}, stubPreferences{enabled: true})
	f.email.err = errors.New("smtp timeout")

	err := f.dispatcher.Deliver(context.Background(), newMatchEvent())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotificationDelivery))
	assert.Equal(t, 1, f.inApp.count())
}

func TestDeliver_InAppFailureStillSendsEmail(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{views: assignedViews()}, stubPreferences{enabled: true})
	f.inApp.err = errors.New("insert failed")

	err := f.dispatcher.Deliver(context.Background(), newMatchEvent())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotificationDelivery))
	assert.Equal(t, 1, f.email.count())
}

func TestDeliver_RespectsEmailOptOut(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{views: assignedViews()}, stubPreferences{enabled: false})

	require.NoError(t, f.dispatcher.Deliver(context.Background(), newMatchEvent()))
	assert.Equal(t, 1, f.inApp.count())
	assert.Zero(t, f.email.count())
}

func TestDeliver_PreferenceErrorFallsBackToEnabled(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{views: assignedViews()}, stubPreferences{err: errors.New("db down")})

	require.NoError(t, f.dispatcher.Deliver(context.Background(), newMatchEvent()))
	assert.Equal(t, 1, f.email.count())
}

func TestDeliver_SkipsWithoutRequestOrRecipient(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{}, stubPreferences{enabled: true})
	require.NoError(t, f.dispatcher.Deliver(context.Background(), newMatchEvent()))

	views := assignedViews()
	views.Recipient = nil
	f = newDispatcherFixture(t, stubLoader{views: views}, stubPreferences{enabled: true})
	require.NoError(t, f.dispatcher.Deliver(context.Background(), newMatchEvent()))

	assert.Zero(t, f.inApp.count())
	assert.Zero(t, f.email.count())
}

func TestDeliver_LoaderError(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{err: errors.New("db down")}, stubPreferences{enabled: true})

	err := f.dispatcher.Deliver(context.Background(), newMatchEvent())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNotify_FullQueueDropsEvent(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{views: assignedViews()}, stubPreferences{enabled: true})

	require.NoError(t, f.dispatcher.Notify(context.Background(), newMatchEvent()))
	require.NoError(t, f.dispatcher.Notify(context.Background(), newMatchEvent()))

	err := f.dispatcher.Notify(context.Background(), newMatchEvent())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	err = f.dispatcher.Notify(context.Background(), Event{Type: enums.NotificationTypeNewMatch})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRun_DeliversQueuedEventsAndStops(t *testing.T) {
	f := newDispatcherFixture(t, stubLoader{views: assignedViews()}, stubPreferences{enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.dispatcher.Run(ctx) }()

	require.NoError(t, f.dispatcher.Notify(ctx, newMatchEvent()))
	require.NoError(t, f.dispatcher.Notify(ctx, newMatchEvent()))

	require.Eventually(t, func() bool { return f.inApp.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
