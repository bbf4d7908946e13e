package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emlakofis/emlak-backend/internal/activity"
	analyticswriter "github.com/emlakofis/emlak-backend/internal/analytics/writer"
	"github.com/emlakofis/emlak-backend/internal/jobs"
	"github.com/emlakofis/emlak-backend/internal/matching"
	"github.com/emlakofis/emlak-backend/internal/notifications"
	"github.com/emlakofis/emlak-backend/pkg/bigquery"
	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/db"
	"github.com/emlakofis/emlak-backend/pkg/eventing/idempotency"
	"github.com/emlakofis/emlak-backend/pkg/instance"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
	"github.com/emlakofis/emlak-backend/pkg/migrate"
	"github.com/emlakofis/emlak-backend/pkg/pubsub"
	"github.com/emlakofis/emlak-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
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

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleSubscriber, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
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
	observers := []jobs.Observer{loggingObserver, jobs.NewMetricsObserver(jobMetrics)}

	deps := []Dependency{
		{Name: "database", Ping: dbClient.Ping},
		{Name: "redis", Ping: redisClient.Ping},
		{Name: "pubsub", Ping: pubsubClient.Ping},
	}

	var analytics *analyticswriter.BigQueryWriter
	if cfg.FeatureFlags.MatchAnalytic {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, analyticswriter.MatchRunsTable(cfg.BigQuery.MatchRunsTable))
		if err != nil {
			return err
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		analytics, err = analyticswriter.New(bqClient, analyticswriter.Config{MatchRunsTable: cfg.BigQuery.MatchRunsTable})
		if err != nil {
			return err
		}
		analyticsObserver, err := jobs.NewAnalyticsObserver(analytics, logg)
		if err != nil {
			return err
		}
		observers = append(observers, analyticsObserver)
		deps = append(deps, Dependency{Name: "bigquery", Ping: bqClient.Ping})
	}

	failures, err := jobs.NewActivityFailureHandler(activityWriter, logg)
	if err != nil {
		return err
	}
	dispatcher, err := jobs.NewDispatcher(jobs.DispatcherParams{
		Matcher:        engine,
		Observers:      observers,
		FailureHandler: failures,
		Metrics:        jobMetrics,
		Logger:         logg,
		Workers:        cfg.Jobs.Workers,
		QueueSize:      cfg.Jobs.QueueSize,
		MaxAttempts:    cfg.Jobs.MaxAttempts,
		AttemptTimeout: cfg.Jobs.AttemptTimeout,
		RetryBackoff:   cfg.Jobs.RetryBackoff,
	})
	if err != nil {
		return err
	}

	guard, err := idempotency.NewGuard(redisClient, jobs.TriggerConsumerName, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return err
	}
	consumer, err := jobs.NewTriggerConsumer(jobs.TriggerConsumerParams{
		Subscription: pubsubClient.TriggerSubscription(),
		Jobs:         dispatcher,
		Guard:        guard,
		Notifier:     notifier,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	params := ServiceParams{
		Logger:        logg,
		Dependencies:  deps,
		Jobs:          dispatcher,
		Notifications: notifier,
		Triggers:      consumer,
	}
	if analytics != nil {
		params.Analytics = analytics
	}
	service, err := NewService(params)
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting worker")
	return service.Run(ctx)
}
