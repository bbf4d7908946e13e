package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/internal/matching"
	"github.com/emlakofis/emlak-backend/pkg/db"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
)

const (
	defaultWorkers         = 4
	defaultQueueSize       = 256
	defaultMaxAttempts     = 3
	defaultAttemptTimeout  = 300 * time.Second
	defaultRetryBackoff    = 5 * time.Second
	defaultStatusRetention = time.Hour
)

type matcher interface {
	MatchForRequest(ctx context.Context, requestID uuid.UUID) (*matching.MatchResult, error)
	MatchAllActiveRequests(ctx context.Context) (*matching.BatchResult, error)
}

// Observer is told about every attempt and about the terminal state.
type Observer interface {
	AttemptStarted(ctx context.Context, status Status)
	AttemptFinished(ctx context.Context, status Status, err error, took time.Duration)
	Finished(ctx context.Context, status Status)
}

// FailureHandler runs once per job after its last attempt failed. It must
// not panic or return errors; the dispatcher still surfaces the job error.
type FailureHandler interface {
	Failed(ctx context.Context, status Status, err error)
}

// Dispatcher runs matching jobs through Queued → Running → Succeeded|Failed
// with bounded attempts and a timeout per attempt.
type Dispatcher struct {
	matcher        matcher
	observers      []Observer
	failure        FailureHandler
	metrics        *metrics.JobMetrics
	logg           *logger.Logger
	queue          chan Job
	workers        int
	maxAttempts    int
	attemptTimeout time.Duration
	backoff        time.Duration
	retention      time.Duration
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error

	mu       sync.RWMutex
	statuses map[uuid.UUID]*Status
}

type DispatcherParams struct {
	Matcher        matcher
	Observers      []Observer
	FailureHandler FailureHandler
	Metrics        *metrics.JobMetrics
	Logger         *logger.Logger
	Workers        int
	QueueSize      int
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
	Now            func() time.Time
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Matcher == nil {
		return nil, errors.New("matching engine required")
	}
	if params.FailureHandler == nil {
		return nil, errors.New("failure handler required")
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
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	timeout := params.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		matcher:        params.Matcher,
		observers:      params.Observers,
		failure:        params.FailureHandler,
		metrics:        params.Metrics,
		logg:           params.Logger,
		queue:          make(chan Job, size),
		workers:        workers,
		maxAttempts:    attempts,
		attemptTimeout: timeout,
		backoff:        backoff,
		retention:      defaultStatusRetention,
		now:            now,
		sleep:          sleepCtx,
		statuses:       make(map[uuid.UUID]*Status),
	}, nil
}

// Submit queues job for the worker pool and returns its id. A full queue is
// a dependency error; the caller decides whether to retry.
func (d *Dispatcher) Submit(ctx context.Context, job Job) (uuid.UUID, error) {
	job, err := d.prepare(job)
	if err != nil {
		return uuid.Nil, err
	}
	d.track(job)

	select {
	case d.queue <- job:
		d.metrics.SetQueueDepth(len(d.queue))
		d.logg.Info(d.jobContext(ctx, job), "job queued")
		return job.ID, nil
	default:
		d.forget(job.ID)
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeDependency, "job queue full").
			WithDetails(map[string]any{"kind": job.Kind})
	}
}

// Execute runs job on the caller's goroutine and returns its final status.
// After retries are exhausted the failure handler runs and the last error is
// returned.
func (d *Dispatcher) Execute(ctx context.Context, job Job) (Status, error) {
	job, err := d.prepare(job)
	if err != nil {
		return Status{Job: job, State: enums.JobStateFailed, Err: err}, err
	}
	d.track(job)
	return d.execute(ctx, job)
}

// Status returns a snapshot of a tracked job.
func (d *Dispatcher) Status(id uuid.UUID) (Status, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.statuses[id]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// Run starts the worker pool and blocks until ctx is cancelled and every
// in-flight job has returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.queue:
					d.metrics.SetQueueDepth(len(d.queue))
					_, _ = d.execute(ctx, job)
				}
			}
		}()
	}
	d.logg.Info(d.logg.WithField(ctx, "workers", d.workers), "job dispatcher started")
	<-ctx.Done()
	wg.Wait()
	if left := len(d.queue); left > 0 {
		d.logg.Warn(d.logg.WithField(ctx, "dropped_jobs", left), "job dispatcher stopped with queued jobs")
	}
	return ctx.Err()
}

func (d *Dispatcher) prepare(job Job) (Job, error) {
	if err := job.validate(); err != nil {
		return job, err
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = d.now().UTC()
	}
	return job, nil
}

func (d *Dispatcher) execute(ctx context.Context, job Job) (Status, error) {
	ctx = matching.WithJobID(d.jobContext(ctx, job), job.ID)
	if job.Kind == enums.JobKindMatchRequest {
		// The failure handler writes the match-error entry once retries run out.
		ctx = matching.WithFailureOwned(ctx)
	}

	var (
		result  *Result
		lastErr error
	)
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		started := d.update(job.ID, func(st *Status) {
			now := d.now().UTC()
			st.State = enums.JobStateRunning
			st.Attempts = attempt
			if st.StartedAt == nil {
				st.StartedAt = &now
			}
		})
		attemptCtx := d.logg.WithField(ctx, "attempt", attempt)
		for _, o := range d.observers {
			o.AttemptStarted(attemptCtx, started)
		}

		begin := d.now()
		result, lastErr = d.attempt(attemptCtx, job)
		took := d.now().Sub(begin)

		snapshot, _ := d.Status(job.ID)
		for _, o := range d.observers {
			o.AttemptFinished(attemptCtx, snapshot, lastErr, took)
		}

		if lastErr == nil {
			return d.finish(ctx, job.ID, enums.JobStateSucceeded, result, nil), nil
		}
		if ctx.Err() != nil || !shouldRetry(lastErr) || attempt == d.maxAttempts {
			break
		}
		if err := d.sleep(ctx, d.backoff*time.Duration(attempt)); err != nil {
			break
		}
	}

	status := d.finish(ctx, job.ID, enums.JobStateFailed, result, lastErr)
	if ctx.Err() != nil {
		// Shutdown interrupted the job; the next trigger or cron run redoes it.
		d.logg.Warn(ctx, "job interrupted before completion")
		return status, lastErr
	}
	d.failure.Failed(context.WithoutCancel(ctx), status, lastErr)
	return status, lastErr
}

func (d *Dispatcher) attempt(ctx context.Context, job Job) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	var (
		res *Result
		err error
	)
	switch job.Kind {
	case enums.JobKindMatchRequest:
		var match *matching.MatchResult
		match, err = d.matcher.MatchForRequest(ctx, job.RequestID)
		res = &Result{Match: match}
	case enums.JobKindMatchAll:
		var batch *matching.BatchResult
		batch, err = d.matcher.MatchAllActiveRequests(ctx)
		res = &Result{Batch: batch}
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = pkgerrors.Wrap(pkgerrors.CodeDependency, context.DeadlineExceeded, "attempt timed out after "+d.attemptTimeout.String())
	}
	return res, err
}

func (d *Dispatcher) jobContext(ctx context.Context, job Job) context.Context {
	fields := map[string]any{
		"job_id":   job.ID.String(),
		"job_kind": string(job.Kind),
	}
	if job.RequestID != uuid.Nil {
		fields["customer_request_id"] = job.RequestID.String()
	}
	if job.Reason != "" {
		fields["job_reason"] = job.Reason
	}
	return d.logg.WithFields(ctx, fields)
}

func (d *Dispatcher) track(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	d.statuses[job.ID] = &Status{Job: job, State: enums.JobStateQueued}
}

func (d *Dispatcher) forget(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.statuses, id)
}

func (d *Dispatcher) update(id uuid.UUID, fn func(*Status)) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.statuses[id]
	fn(st)
	return *st
}

func (d *Dispatcher) finish(ctx context.Context, id uuid.UUID, state enums.JobState, result *Result, err error) Status {
	status := d.update(id, func(st *Status) {
		now := d.now().UTC()
		st.State = state
		st.FinishedAt = &now
		st.Result = result
		st.Err = err
	})
	for _, o := range d.observers {
		o.Finished(ctx, status)
	}
	return status
}

// pruneLocked drops terminal statuses older than the retention window.
func (d *Dispatcher) pruneLocked() {
	cutoff := d.now().Add(-d.retention)
	for id, st := range d.statuses {
		if st.State.IsTerminal() && st.FinishedAt != nil && st.FinishedAt.Before(cutoff) {
			delete(d.statuses, id)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shouldRetry follows the error code, except that a store error carrying a
// SQLSTATE is retried only when the state belongs to a transient class.
func shouldRetry(err error) bool {
	if db.HasSQLState(err) {
		return db.IsTransient(err)
	}
	return pkgerrors.IsRetryable(err)
}
