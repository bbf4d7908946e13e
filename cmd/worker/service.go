package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const analyticsFlushTimeout = 10 * time.Second

type runner interface {
	Run(ctx context.Context) error
}

type flusher interface {
	Flush(ctx context.Context) error
}

// Dependency is pinged once before the worker starts consuming.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

type ServiceParams struct {
	Logger        *logger.Logger
	Dependencies  []Dependency
	Jobs          runner
	Notifications runner
	Triggers      runner
	// Analytics is flushed on shutdown when match run analytics are enabled.
	Analytics flusher
}

// Service runs the job dispatcher, the trigger consumer and the notification
// dispatcher side by side. One of them failing stops the rest.
type Service struct {
	logg          *logger.Logger
	deps          []Dependency
	jobs          runner
	notifications runner
	triggers      runner
	analytics     flusher
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Jobs == nil {
		return nil, errors.New("job dispatcher is required")
	}
	if params.Notifications == nil {
		return nil, errors.New("notification dispatcher is required")
	}
	if params.Triggers == nil {
		return nil, errors.New("trigger consumer is required")
	}
	return &Service{
		logg:          params.Logger,
		deps:          params.Dependencies,
		jobs:          params.Jobs,
		notifications: params.Notifications,
		triggers:      params.Triggers,
		analytics:     params.Analytics,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if dep.Ping == nil {
			continue
		}
		if err := pingDependency(ctx, s.logg, dep.Name, dep.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	start := func(name string, r runner) {
		g.Go(func() error {
			err := r.Run(gctx)
			if gctx.Err() != nil {
				return nil
			}
			if err == nil {
				return fmt.Errorf("%s stopped unexpectedly", name)
			}
			return fmt.Errorf("%s: %w", name, err)
		})
	}
	start("job dispatcher", s.jobs)
	start("notification dispatcher", s.notifications)
	start("trigger consumer", s.triggers)

	waitErr := g.Wait()
	if waitErr != nil {
		s.logg.Error(ctx, "worker component stopped", waitErr)
	}

	if s.analytics != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), analyticsFlushTimeout)
		if err := s.analytics.Flush(flushCtx); err != nil {
			s.logg.Error(ctx, "failed to flush match run analytics", err)
		}
		cancel()
	}

	if waitErr != nil {
		return waitErr
	}
	s.logg.Info(ctx, "worker context canceled")
	return ctx.Err()
}
