package controllers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emlakofis/emlak-backend/api/responses"
	"github.com/emlakofis/emlak-backend/pkg/config"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by the db, redis, pubsub and bigquery clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Emlak-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently. Nil pingers are skipped so
// optional integrations do not fail readiness when disabled.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Emlak-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu     sync.Mutex
			g      errgroup.Group
			failed = map[string]string{}
		)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			g.Go(func() error {
				if err := dep.Ping(ctx); err != nil {
					mu.Lock()
					failed[name] = err.Error()
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(failed) > 0 {
			names := make([]string, 0, len(failed))
			for name := range failed {
				names = append(names, name)
			}
			sort.Strings(names)
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"failed": names}))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
