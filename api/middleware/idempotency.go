package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emlakofis/emlak-backend/api/responses"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	pkgredis "github.com/emlakofis/emlak-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	IdempotentReplayHeader = "Idempotent-Replayed"

	triggerIdempotencyTTL  = 24 * time.Hour
	workflowIdempotencyTTL = 7 * 24 * time.Hour
	inFlightClaimTTL       = 2 * time.Minute
)

// Responses to these routes are stored per personnel and key. Workflow steps
// are kept for a week so a double-click on the panel never records two
// transitions.
var idempotentRoutes = map[string]time.Duration{
	"POST /api/v1/requests/{requestId}/match": triggerIdempotencyTTL,
	"POST /api/v1/requests/match-all":         triggerIdempotencyTTL,
	"POST /api/v1/matches/{matchId}/present":  workflowIdempotencyTTL,
	"POST /api/v1/matches/{matchId}/accept":   workflowIdempotencyTTL,
	"POST /api/v1/matches/{matchId}/reject":   workflowIdempotencyTTL,
}

type recordState string

const (
	stateInFlight recordState = "in_flight"
	stateDone     recordState = "done"
)

type storedResponse struct {
	State       recordState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency runs a listed route at most once per Idempotency-Key. The key is
// claimed before the handler runs; a concurrent retry gets 409 until the first
// call finishes, later retries get the stored response. Server errors release
// the key so the client can try again.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(requestScope(r), clientKey)

			claim, _ := json.Marshal(storedResponse{State: stateInFlight, RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(claim), inFlightClaimTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(ctx, logg, w, store, key, hash)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// Detached so a client disconnect does not leave the claim behind.
			storeCtx := context.WithoutCancel(ctx)
			status := rec.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(storeCtx, key); err != nil {
					logError(storeCtx, logg, "release idempotency key", err)
				}
				return
			}

			done, _ := json.Marshal(storedResponse{
				State:       stateDone,
				RequestHash: hash,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err := store.Set(storeCtx, key, string(done), ttl); err != nil {
				logError(storeCtx, logg, "persist idempotency record", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, hash string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The holder failed and released the key between our claim and read.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotent request is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with different request body"))
	case stored.State != stateDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(IdempotentReplayHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func requestScope(r *http.Request) string {
	return strings.Join([]string{PersonnelIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
