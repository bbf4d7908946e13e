package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emlakofis/emlak-backend/internal/matching"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

type fakeMatcher struct {
	mu       sync.Mutex
	calls    int
	jobIDs   []uuid.UUID
	owned    []bool
	matchFn  func(ctx context.Context, call int) (*matching.MatchResult, error)
	matchAll func(ctx context.Context) (*matching.BatchResult, error)
}

func (f *fakeMatcher) MatchForRequest(ctx context.Context, requestID uuid.UUID) (*matching.MatchResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	if id, ok := matching.JobIDFromContext(ctx); ok {
		f.jobIDs = append(f.jobIDs, id)
	}
	f.owned = append(f.owned, matching.FailureOwned(ctx))
	f.mu.Unlock()
	if f.matchFn == nil {
		return &matching.MatchResult{RequestID: requestID}, nil
	}
	return f.matchFn(ctx, call)
}

func (f *fakeMatcher) MatchAllActiveRequests(ctx context.Context) (*matching.BatchResult, error) {
	if f.matchAll == nil {
		return &matching.BatchResult{}, nil
	}
	return f.matchAll(ctx)
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []int
	finished []error
	terminal []Status
}

func (o *recordingObserver) AttemptStarted(_ context.Context, st Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, st.Attempts)
}

func (o *recordingObserver) AttemptFinished(_ context.Context, _ Status, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
}

func (o *recordingObserver) Finished(_ context.Context, st Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.terminal = append(o.terminal, st)
}

type recordingFailures struct {
	mu    sync.Mutex
	calls []Status
	errs  []error
}

func (r *recordingFailures) Failed(_ context.Context, st Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, st)
	r.errs = append(r.errs, err)
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	matcher    *fakeMatcher
	observer   *recordingObserver
	failures   *recordingFailures
	sleeps     []time.Duration
}

func newDispatcherFixture(t *testing.T, tweak func(*DispatcherParams)) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		matcher:  &fakeMatcher{},
		observer: &recordingObserver{},
		failures: &recordingFailures{},
	}
	params := DispatcherParams{
		Matcher:        f.matcher,
		Observers:      []Observer{f.observer},
		FailureHandler: f.failures,
		Logger:         logger.Nop(),
		Workers:        1,
		QueueSize:      4,
		RetryBackoff:   time.Second,
	}
	if tweak != nil {
		tweak(&params)
	}
	d, err := NewDispatcher(params)
	require.NoError(t, err)
	d.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	f.dispatcher = d
	return f
}

func TestNewDispatcherValidation(t *testing.T) {
	_, err := NewDispatcher(DispatcherParams{})
	require.Error(t, err)
	_, err = NewDispatcher(DispatcherParams{Matcher: &fakeMatcher{}, Logger: logger.Nop()})
	require.Error(t, err, "failure handler is mandatory")
}

func TestExecute_Succeeds(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	job := NewMatchRequestJob(uuid.New(), "criteria_changed")

	status, err := f.dispatcher.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, enums.JobStateSucceeded, status.State)
	assert.Equal(t, 1, status.Attempts)
	require.NotNil(t, status.Result)
	require.NotNil(t, status.Result.Match)
	assert.Equal(t, job.RequestID, status.Result.Match.RequestID)
	assert.Equal(t, []uuid.UUID{job.ID}, f.matcher.jobIDs, "engine sees the job id")

	assert.Equal(t, []int{1}, f.observer.started)
	require.Len(t, f.observer.terminal, 1)
	assert.Empty(t, f.failures.calls)

	tracked, ok := f.dispatcher.Status(job.ID)
	require.True(t, ok)
	assert.Equal(t, enums.JobStateSucceeded, tracked.State)
}

func TestExecute_RetriesTransientErrors(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	f.matcher.matchFn = func(_ context.Context, call int) (*matching.MatchResult, error) {
		if call == 1 {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "db unavailable")
		}
		return &matching.MatchResult{}, nil
	}

	status, err := f.dispatcher.Execute(context.Background(), NewMatchRequestJob(uuid.New(), ""))
	require.NoError(t, err)
	assert.Equal(t, enums.JobStateSucceeded, status.State)
	assert.Equal(t, 2, status.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, f.sleeps)
	assert.Empty(t, f.failures.calls)
}

func TestExecute_ExhaustsAttemptsAndSurfacesError(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	transient := pkgerrors.New(pkgerrors.CodeDependency, "db unavailable")
	f.matcher.matchFn = func(context.Context, int) (*matching.MatchResult, error) {
		return nil, transient
	}

	job := NewMatchRequestJob(uuid.New(), "")
	status, err := f.dispatcher.Execute(context.Background(), job)
	require.ErrorIs(t, err, transient)
	assert.Equal(t, enums.JobStateFailed, status.State)
	assert.Equal(t, 3, status.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps, "linear backoff")

	require.Len(t, f.failures.calls, 1)
	assert.Equal(t, job.ID, f.failures.calls[0].Job.ID)
	assert.ErrorIs(t, f.failures.errs[0], transient)
	assert.Len(t, f.observer.finished, 3)
}

func TestExecute_MatchRequestFailureEntryWrittenOnce(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	f.matcher.matchFn = func(context.Context, int) (*matching.MatchResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db unavailable")
	}

	_, err := f.dispatcher.Execute(context.Background(), NewMatchRequestJob(uuid.New(), ""))
	require.Error(t, err)
	assert.Equal(t, []bool{true, true, true}, f.matcher.owned, "engine leaves the timeline entry to the failure handler")
	assert.Len(t, f.failures.calls, 1)
}

func TestExecute_NotFoundIsNotRetried(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	f.matcher.matchFn = func(context.Context, int) (*matching.MatchResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer request not found")
	}

	status, err := f.dispatcher.Execute(context.Background(), NewMatchRequestJob(uuid.New(), ""))
	require.Error(t, err)
	assert.Equal(t, 1, status.Attempts)
	assert.Empty(t, f.sleeps)
	assert.Len(t, f.failures.calls, 1)
}

func TestExecute_ConstraintViolationIsNotRetried(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	f.matcher.matchFn = func(context.Context, int) (*matching.MatchResult, error) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, &pgconn.PgError{Code: "23514", Message: "violates check constraint"}, "create match")
	}

	status, err := f.dispatcher.Execute(context.Background(), NewMatchRequestJob(uuid.New(), ""))
	require.Error(t, err)
	assert.Equal(t, 1, status.Attempts)
	assert.Empty(t, f.sleeps)
}

func TestExecute_SerializationFailureIsRetried(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	f.matcher.matchFn = func(_ context.Context, call int) (*matching.MatchResult, error) {
		if call == 1 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, &pgconn.PgError{Code: "40001"}, "create match")
		}
		return &matching.MatchResult{}, nil
	}

	status, err := f.dispatcher.Execute(context.Background(), NewMatchRequestJob(uuid.New(), ""))
	require.NoError(t, err)
	assert.Equal(t, 2, status.Attempts)
}

func TestExecute_AttemptTimeoutIsRetryable(t *testing.T) {
	f := newDispatcherFixture(t, func(p *DispatcherParams) {
		p.AttemptTimeout = 20 * time.Millisecond
		p.MaxAttempts = 2
	})
	f.matcher.matchFn = func(ctx context.Context, _ int) (*matching.MatchResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	status, err := f.dispatcher.Execute(context.Background(), NewMatchRequestJob(uuid.New(), ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, pkgerrors.IsRetryable(err))
	assert.Equal(t, 2, status.Attempts)
	assert.Len(t, f.failures.calls, 1)
}

func TestExecute_MatchAllWithPartialFailuresSucceeds(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	f.matcher.matchAll = func(context.Context) (*matching.BatchResult, error) {
		return &matching.BatchResult{Succeeded: 2, Failed: 1}, nil
	}

	status, err := f.dispatcher.Execute(context.Background(), NewMatchAllJob("cron"))
	require.NoError(t, err)
	assert.Equal(t, enums.JobStateSucceeded, status.State)
	require.NotNil(t, status.Result.Batch)
	assert.Equal(t, 2, status.Result.Batch.Succeeded)
	assert.Equal(t, 1, status.Result.Batch.Failed)
}

func TestExecute_ShutdownSkipsFailureHandler(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.matcher.matchFn = func(context.Context, int) (*matching.MatchResult, error) {
		cancel()
		return nil, context.Canceled
	}

	status, err := f.dispatcher.Execute(ctx, NewMatchRequestJob(uuid.New(), ""))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, enums.JobStateFailed, status.State)
	assert.Empty(t, f.failures.calls)
}

func TestExecute_RejectsInvalidJobs(t *testing.T) {
	f := newDispatcherFixture(t, nil)

	_, err := f.dispatcher.Execute(context.Background(), Job{Kind: enums.JobKindMatchRequest})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.dispatcher.Submit(context.Background(), Job{Kind: "reindex"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSubmit_QueueFull(t *testing.T) {
	f := newDispatcherFixture(t, func(p *DispatcherParams) { p.QueueSize = 1 })

	first, err := f.dispatcher.Submit(context.Background(), NewMatchAllJob("cron"))
	require.NoError(t, err)
	st, ok := f.dispatcher.Status(first)
	require.True(t, ok)
	assert.Equal(t, enums.JobStateQueued, st.State)

	_, err = f.dispatcher.Submit(context.Background(), NewMatchAllJob("cron"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestRun_ProcessesSubmittedJobs(t *testing.T) {
	f := newDispatcherFixture(t, func(p *DispatcherParams) { p.Workers = 2 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.dispatcher.Run(ctx) }()

	id, err := f.dispatcher.Submit(ctx, NewMatchRequestJob(uuid.New(), "manual"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, ok := f.dispatcher.Status(id)
		return ok && st.State == enums.JobStateSucceeded
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	_, ok := f.dispatcher.Status(uuid.New())
	assert.False(t, ok)
}
