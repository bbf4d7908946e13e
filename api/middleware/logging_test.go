package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
)

func TestLoggingLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := chi.NewRouter()
	router.Use(Logging(logger.Nop(), metrics.NewHTTPMetrics(reg)))
	router.Get("/api/v1/matches/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/matches/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	count, err := testutil.GatherAndCount(reg, "emlak_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "all ids share one route series")
}

func TestLoggingDefaultsStatusToOK(t *testing.T) {
	handler := Logging(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
