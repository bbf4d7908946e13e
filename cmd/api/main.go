package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emlakofis/emlak-backend/api/controllers"
	"github.com/emlakofis/emlak-backend/api/routes"
	"github.com/emlakofis/emlak-backend/internal/activity"
	"github.com/emlakofis/emlak-backend/internal/matching"
	"github.com/emlakofis/emlak-backend/internal/notifications"
	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/db"
	"github.com/emlakofis/emlak-backend/pkg/eventing"
	"github.com/emlakofis/emlak-backend/pkg/instance"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
	"github.com/emlakofis/emlak-backend/pkg/migrate"
	"github.com/emlakofis/emlak-backend/pkg/pubsub"
	"github.com/emlakofis/emlak-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RolePublisher, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	triggers, err := eventing.NewPublisher(pubsubClient.TriggerPublisher(), logg)
	if err != nil {
		logg.Error(ctx, "failed to create trigger publisher", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)
	notificationMetrics := metrics.NewNotificationMetrics(prometheus.DefaultRegisterer)

	notifier, err := notifications.NewPipeline(ctx, notifications.PipelineParams{
		Config:  cfg,
		DB:      dbClient.DB(),
		Metrics: notificationMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	activityRepo := activity.NewRepository(dbClient.DB())
	activityWriter, err := activity.NewWriter(activity.WriterParams{Repo: activityRepo, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to create activity writer", err)
		os.Exit(1)
	}
	activityService, err := activity.NewService(activityRepo)
	if err != nil {
		logg.Error(ctx, "failed to create activity service", err)
		os.Exit(1)
	}
	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	locker, err := matching.NewRedisLocker(matching.RedisLockerParams{
		Store:  redisClient,
		TTL:    cfg.Matching.LockTTL,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create matching lock", err)
		os.Exit(1)
	}
	actions, err := matching.NewActions(matching.ActionsParams{
		Repo:     matching.NewRepository(dbClient.DB()),
		Locker:   locker,
		Notifier: notifier,
		Activity: activityWriter,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create match actions", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(cfg.Service.Kind, cfg.Service.InstanceID),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			map[string]controllers.Pinger{
				"db":     dbClient,
				"redis":  redisClient,
				"pubsub": pubsubClient,
			},
			redisClient,
			httpMetrics,
			promhttp.Handler(),
			actions,
			triggers,
			activityService,
			notificationsService,
		),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	notifierDone := make(chan struct{})
	go func() {
		defer close(notifierDone)
		if err := notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "notification dispatcher stopped unexpectedly", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			stop()
			<-notifierDone
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
	<-notifierDone
	logg.Info(ctx, "api server stopped")
}
