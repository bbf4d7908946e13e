package middleware

import (
	"net/http"
	"strings"

	"github.com/emlakofis/emlak-backend/api/responses"
	"github.com/emlakofis/emlak-backend/pkg/auth"
	"github.com/emlakofis/emlak-backend/pkg/config"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// Auth requires a personnel bearer token and stores its principal on the
// request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, verifierErr := auth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifierErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, verifierErr, "token verification unavailable"))
				return
			}
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			principal := Principal{ID: claims.Subject, Name: claims.Name}
			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithPersonnelID(ctx, principal.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credentials of an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
