package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emlakofis/emlak-backend/api/controllers"
	"github.com/emlakofis/emlak-backend/api/middleware"
	"github.com/emlakofis/emlak-backend/internal/activity"
	"github.com/emlakofis/emlak-backend/internal/notifications"
	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
	pkgredis "github.com/emlakofis/emlak-backend/pkg/redis"
)

// Store backs idempotency replays and rate limit counters.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	store Store,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	matchWorkflow controllers.MatchWorkflow,
	triggers controllers.TriggerPublisher,
	activityService activity.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	triggerPolicy := middleware.NewRateLimitPolicy("match-trigger", cfg.HTTP.TriggerWindow, cfg.HTTP.TriggerLimit, true)
	matchAllPolicy := middleware.NewRateLimitPolicy("match-all", cfg.HTTP.MatchAllWindow, cfg.HTTP.MatchAllLimit, false)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// Idempotency keys off the resolved route pattern, which chi only
		// knows once the leaf route matched.
		idempotent := middleware.Idempotency(store, logg)

		r.Route("/requests", func(r chi.Router) {
			r.With(middleware.RateLimit(matchAllPolicy, store, logg), idempotent).Post("/match-all", controllers.TriggerMatchAll(triggers, logg))
			r.Route("/{requestId}", func(r chi.Router) {
				r.With(middleware.RateLimit(triggerPolicy, store, logg), idempotent).Post("/match", controllers.TriggerRequestMatch(triggers, logg))
				r.Get("/matches", controllers.ListRequestMatches(matchWorkflow, logg))
				r.Get("/activity", controllers.ListRequestActivity(activityService, logg))
			})
		})

		r.Route("/matches/{matchId}", func(r chi.Router) {
			r.With(idempotent).Post("/present", controllers.PresentMatch(matchWorkflow, logg))
			r.With(idempotent).Post("/accept", controllers.AcceptMatch(matchWorkflow, logg))
			r.With(idempotent).Post("/reject", controllers.RejectMatch(matchWorkflow, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
		})
	})

	return r
}
