package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
)

type fakeStore struct {
	mu       sync.Mutex
	data     map[string]string
	ttls     map[string]time.Duration
	deleted  []string
	setNXErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setNXErr != nil {
		return false, f.setNXErr
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

const acceptPattern = "/api/v1/matches/{matchId}/accept"

func acceptRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/7/accept", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{acceptPattern}
	return req.WithContext(context.WithValue(WithPersonnelID(req.Context(), "p-1"), chi.RouteCtxKey, rc))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestRouteTTL(t *testing.T) {
	cases := []struct {
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{http.MethodPost, "/api/v1/matches/{matchId}/present", workflowIdempotencyTTL, true},
		{http.MethodPost, acceptPattern, workflowIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/matches/{matchId}/reject", workflowIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/requests/{requestId}/match", triggerIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/requests/match-all", triggerIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/requests/{requestId}/matches", 0, false},
		{http.MethodPost, "/api/v1/notifications/{notificationId}/read", 0, false},
		{http.MethodGet, acceptPattern, 0, false},
	}
	for _, tc := range cases {
		ttl, ok := routeTTL(tc.method, tc.pattern)
		assert.Equal(t, tc.ok, ok, tc.method+" "+tc.pattern)
		assert.Equal(t, tc.want, ttl, tc.method+" "+tc.pattern)
	}
}

func TestIdempotency_RequiresHeader(t *testing.T) {
	called := false
	h := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := serve(h, acceptRequest("", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotency_UnlistedRoutePassesThrough(t *testing.T) {
	store := newFakeStore()
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	rec := serve(h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.data)
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"feedback":"uygun"}`, string(body), "handler must still see the body")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"status":"accepted"}}`))
	}))

	first := serve(h, acceptRequest("k1", `{"feedback":"uygun"}`))
	require.Equal(t, http.StatusOK, first.Code)

	replay := serve(h, acceptRequest("k1", `{"feedback":"uygun"}`))
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(IdempotentReplayHeader))
	assert.JSONEq(t, `{"data":{"status":"accepted"}}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	key := "idem:p-1|POST|/api/v1/matches/7/accept:k1"
	assert.Equal(t, workflowIdempotencyTTL, store.ttls[key])
}

func TestIdempotency_DifferentBodyConflicts(t *testing.T) {
	h := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	serve(h, acceptRequest("k2", `{"feedback":"a"}`))
	rec := serve(h, acceptRequest("k2", `{"feedback":"b"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCodeOf(t, rec))
}

func TestIdempotency_InFlightConflicts(t *testing.T) {
	store := newFakeStore()
	entered := make(chan struct{})
	finish := make(chan struct{})
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-finish
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- serve(h, acceptRequest("k3", `{}`)) }()
	<-entered

	rec := serve(h, acceptRequest("k3", `{}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "still in progress")
	assert.Equal(t, inFlightClaimTTL, store.ttls["idem:p-1|POST|/api/v1/matches/7/accept:k3"])

	close(finish)
	assert.Equal(t, http.StatusOK, (<-done).Code)
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusServiceUnavailable, serve(h, acceptRequest("k4", `{}`)).Code)
	assert.Len(t, store.deleted, 1)

	assert.Equal(t, http.StatusOK, serve(h, acceptRequest("k4", `{}`)).Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ClientErrorIsStored(t *testing.T) {
	calls := 0
	h := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	serve(h, acceptRequest("k5", `{}`))
	assert.Equal(t, http.StatusUnprocessableEntity, serve(h, acceptRequest("k5", `{}`)).Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.setNXErr = errors.New("redis down")
	h := Idempotency(store, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a claim")
	}))

	rec := serve(h, acceptRequest("k6", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCodeOf(t, rec))
}
