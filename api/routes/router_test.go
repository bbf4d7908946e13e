package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/emlakofis/emlak-backend/api/controllers"
	"github.com/emlakofis/emlak-backend/internal/activity"
	"github.com/emlakofis/emlak-backend/internal/notifications"
	pkgAuth "github.com/emlakofis/emlak-backend/pkg/auth"
	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	"github.com/emlakofis/emlak-backend/pkg/eventing"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, counters: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[scope]++
	return m.counters[scope] <= limit, m.counters[scope], nil
}

type stubWorkflow struct {
	mu       sync.Mutex
	presents int
}

func (s *stubWorkflow) ListForRequest(_ context.Context, requestID uuid.UUID) ([]models.Match, error) {
	return []models.Match{}, nil
}

func (s *stubWorkflow) Present(_ context.Context, matchID, personnelID uuid.UUID, _ string) (*models.Match, error) {
	s.mu.Lock()
	s.presents++
	s.mu.Unlock()
	return &models.Match{ID: matchID, PresentedBy: &personnelID, Status: enums.MatchStatusPresented, IsActive: true}, nil
}

func (s *stubWorkflow) Accept(_ context.Context, matchID uuid.UUID, _ string) (*models.Match, error) {
	return &models.Match{ID: matchID, Status: enums.MatchStatusAccepted, IsActive: true}, nil
}

func (s *stubWorkflow) Reject(_ context.Context, matchID uuid.UUID, _ string) (*models.Match, error) {
	return &models.Match{ID: matchID, Status: enums.MatchStatusRejected, IsActive: true}, nil
}

type stubPublisher struct{}

func (stubPublisher) Publish(context.Context, enums.TriggerEventType, *eventing.ActorRef, any) (uuid.UUID, error) {
	return uuid.New(), nil
}

type stubActivityService struct{}

func (stubActivityService) List(context.Context, activity.ListParams) (*activity.ListResult, error) {
	return &activity.ListResult{}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "emlak"},
		HTTP: config.HTTPConfig{
			TriggerLimit:   30,
			TriggerWindow:  time.Minute,
			MatchAllLimit:  2,
			MatchAllWindow: time.Hour,
		},
	}
}

type routerFixture struct {
	handler  http.Handler
	workflow *stubWorkflow
	token    string
}

func newTestRouter(t *testing.T, cfg *config.Config) *routerFixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	workflow := &stubWorkflow{}
	handler := NewRouter(
		cfg,
		logg,
		map[string]controllers.Pinger{"db": stubPinger{}},
		newMemoryStore(),
		nil,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		workflow,
		stubPublisher{},
		stubActivityService{},
		stubNotificationsService{},
	)
	return &routerFixture{handler: handler, workflow: workflow, token: buildToken(t, cfg)}
}

func buildToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.Sign(cfg.JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{
		PersonnelID: uuid.New(),
		Name:        "Ayşe Demir",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f *routerFixture) do(method, target, body, idempotencyKey string, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutesArePublic(t *testing.T) {
	f := newTestRouter(t, testConfig())

	if resp := f.do(http.MethodGet, "/health/live", "", "", false); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/health/ready", "", "", false); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ready got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/metrics", "", "", false); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
}

func TestAPIRejectsMissingJWT(t *testing.T) {
	f := newTestRouter(t, testConfig())
	resp := f.do(http.MethodGet, "/api/v1/notifications", "", "", false)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAPISucceedsWithJWT(t *testing.T) {
	f := newTestRouter(t, testConfig())
	paths := []string{
		"/api/v1/notifications",
		"/api/v1/requests/" + uuid.NewString() + "/matches",
		"/api/v1/requests/" + uuid.NewString() + "/activity",
	}
	for _, path := range paths {
		if resp := f.do(http.MethodGet, path, "", "", true); resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d: %s", path, resp.Code, resp.Body.String())
		}
	}
}

func TestWorkflowRoutesRequireIdempotencyKey(t *testing.T) {
	f := newTestRouter(t, testConfig())
	target := "/api/v1/matches/" + uuid.NewString() + "/present"

	resp := f.do(http.MethodPost, target, `{"note":"gösterildi"}`, "", true)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}
}

func TestWorkflowRoutesReplayByIdempotencyKey(t *testing.T) {
	f := newTestRouter(t, testConfig())
	target := "/api/v1/matches/" + uuid.NewString() + "/present"

	first := f.do(http.MethodPost, target, `{"note":"gösterildi"}`, "key-1", true)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", first.Code, first.Body.String())
	}
	second := f.do(http.MethodPost, target, `{"note":"gösterildi"}`, "key-1", true)
	if second.Code != http.StatusOK {
		t.Fatalf("expected replayed 200 got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected replayed body")
	}
	if f.workflow.presents != 1 {
		t.Fatalf("expected one present call, got %d", f.workflow.presents)
	}
}

func TestMatchAllIsRateLimited(t *testing.T) {
	f := newTestRouter(t, testConfig())

	for i, key := range []string{"a", "b"} {
		resp := f.do(http.MethodPost, "/api/v1/requests/match-all", "", key, true)
		if resp.Code != http.StatusAccepted {
			t.Fatalf("call %d: expected 202 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	resp := f.do(http.MethodPost, "/api/v1/requests/match-all", "", "c", true)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestRequestMatchTriggerAccepted(t *testing.T) {
	f := newTestRouter(t, testConfig())
	target := "/api/v1/requests/" + uuid.NewString() + "/match"

	resp := f.do(http.MethodPost, target, `{"changed_fields":["max_price"]}`, "trigger-1", true)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", resp.Code, resp.Body.String())
	}
}
