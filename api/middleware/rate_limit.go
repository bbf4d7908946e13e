package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/emlakofis/emlak-backend/api/responses"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles a group of endpoints. Per-actor policies count
// each personnel separately; shared policies use one counter for everyone.
type RateLimitPolicy struct {
	name     string
	window   time.Duration
	limit    int64
	perActor bool
}

func NewRateLimitPolicy(name string, window time.Duration, limit int64, perActor bool) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "api"
	}
	return RateLimitPolicy{name: name, window: window, limit: limit, perActor: perActor}
}

func (p RateLimitPolicy) enabled() bool { return p.window > 0 && p.limit > 0 }

func (p RateLimitPolicy) scope(r *http.Request) string {
	if !p.perActor {
		return p.name
	}
	if actor := PersonnelIDFromContext(r.Context()); actor != "" {
		return p.name + ":" + actor
	}
	return p.name + ":ip:" + clientIP(r)
}

// RateLimit rejects requests over the policy's fixed window with RATE_LIMIT_EXCEEDED.
// Every counted response carries X-RateLimit-Limit and X-RateLimit-Remaining;
// blocked ones also get Retry-After set to the window length.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		retryAfter := strconv.Itoa(max(1, int(policy.window.Round(time.Second)/time.Second)))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			allowed, count, err := store.FixedWindowAllow(ctx, policy.scope(r), policy.limit, policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(policy.limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(0, policy.limit-count), 10))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Retry-After", retryAfter)
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"policy":         policy.name,
					"attempts":       count,
					"limit":          policy.limit,
					"window_seconds": int(policy.window.Seconds()),
				}), "rate_limit.blocked")
			}
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		})
	}
}

// clientIP prefers the first parseable X-Forwarded-For hop, then X-Real-IP,
// then the socket peer.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
			return addr.Unmap().String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	if addrPort, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return addrPort.Addr().Unmap().String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
