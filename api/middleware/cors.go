package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS lets the back-office panel call the API from the browser. A wildcard
// origin disables credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders: []string{
			"X-Request-Id", IdempotentReplayHeader,
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After",
		},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	})
}
