package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
)

const defaultInterval = 6 * time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval, on at most one
// cron-worker instance at a time.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

// Cycle summarizes one scheduled pass over the registry.
type Cycle struct {
	Skipped bool
	Ran     []string
	// Err combines the failures of individual jobs.
	Err error
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      time.Now,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run starts a cycle right away and then every interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle aborted", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce takes the cluster-wide lock and runs each job in registration
// order. A failing job does not stop the ones after it; the returned error
// is reserved for lock failures and cancellation.
func (s *Service) RunOnce(ctx context.Context) (Cycle, error) {
	var cycle Cycle
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return cycle, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		cycle.Skipped = true
		s.metrics.IncSkippedCycle()
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return cycle, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return cycle, err
		}
		cycle.Ran = append(cycle.Ran, job.Name())
		if err := s.runJob(ctx, job); err != nil {
			cycle.Err = multierr.Append(cycle.Err, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":   len(cycle.Ran),
		"failed": len(multierr.Errors(cycle.Err)),
	}), "cron cycle finished")
	return cycle, nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	started := s.now()
	err := job.Run(ctx)
	finished := s.now()
	s.metrics.ObserveRun(job.Name(), finished, finished.Sub(started), err)

	ctx = s.logg.WithField(ctx, "duration_ms", finished.Sub(started).Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return err
	}
	s.logg.Info(ctx, "cron job completed")
	return nil
}
