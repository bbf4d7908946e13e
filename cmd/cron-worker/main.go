package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/emlakofis/emlak-backend/internal/activity"
	"github.com/emlakofis/emlak-backend/internal/cron"
	"github.com/emlakofis/emlak-backend/internal/jobs"
	"github.com/emlakofis/emlak-backend/internal/matching"
	"github.com/emlakofis/emlak-backend/internal/notifications"
	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/db"
	"github.com/emlakofis/emlak-backend/pkg/instance"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
	"github.com/emlakofis/emlak-backend/pkg/migrate"
	"github.com/emlakofis/emlak-backend/pkg/redis"
)

const lockKeyFormat = "emlak:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(cfg.Service.Kind, cfg.Service.InstanceID),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	notifier, err := notifications.NewPipeline(ctx, notifications.PipelineParams{
		Config:  cfg,
		DB:      dbClient.DB(),
		Metrics: metrics.NewNotificationMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	activityWriter, err := activity.NewWriter(activity.WriterParams{
		Repo:   activity.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		return err
	}

	locker, err := matching.NewRedisLocker(matching.RedisLockerParams{
		Store:  redisClient,
		TTL:    cfg.Matching.LockTTL,
		Logger: logg,
	})
	if err != nil {
		return err
	}
	engine, err := matching.NewEngine(matching.EngineParams{
		DB:        dbClient,
		Repo:      matching.NewRepository(dbClient.DB()),
		Locker:    locker,
		Notifier:  notifier,
		Activity:  activityWriter,
		Metrics:   metrics.NewMatchingMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
		MinScore:  cfg.Matching.MinScore,
		HighScore: cfg.Matching.HighScore,
	})
	if err != nil {
		return err
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	loggingObserver, err := jobs.NewLoggingObserver(logg)
	if err != nil {
		return err
	}
	failures, err := jobs.NewActivityFailureHandler(activityWriter, logg)
	if err != nil {
		return err
	}
	dispatcher, err := jobs.NewDispatcher(jobs.DispatcherParams{
		Matcher:        engine,
		Observers:      []jobs.Observer{loggingObserver, jobs.NewMetricsObserver(jobMetrics)},
		FailureHandler: failures,
		Metrics:        jobMetrics,
		Logger:         logg,
		MaxAttempts:    cfg.Jobs.MaxAttempts,
		AttemptTimeout: cfg.Jobs.AttemptTimeout,
		RetryBackoff:   cfg.Jobs.RetryBackoff,
	})
	if err != nil {
		return err
	}

	matchAll, err := cron.NewMatchAllJob(cron.MatchAllJobParams{Logger: logg, Dispatcher: dispatcher})
	if err != nil {
		return err
	}
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetentionDays,
		BatchSize:  cfg.Cron.NotificationCleanupBatch,
	})
	if err != nil {
		return err
	}
	registry, err := cron.NewRegistry(matchAll, cleanup)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "cron jobs registered")

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.MatchAllInterval,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting cron worker")

	// The dispatcher is only used through Execute here, so no job workers run.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return notifier.Run(gctx) })
	g.Go(func() error { return service.Run(gctx) })
	return g.Wait()
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
