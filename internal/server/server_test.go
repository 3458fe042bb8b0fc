package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/api/ws"
	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/config"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/presence"
	"github.com/gosuda/taskboard/internal/server"
)

const testSecret = "server-test-secret-server-test-secret"

// listOnlyTasks answers List; any other call panics on the nil embedded interface.
type listOnlyTasks struct {
	v1.TaskService
	tasks []*domain.Task
}

func (l *listOnlyTasks) List(context.Context) ([]*domain.Task, error) {
	return l.tasks, nil
}

type noIdentity struct{}

func (noIdentity) Resolve(context.Context, string) (uuid.UUID, bool) { return uuid.Nil, false }

func testConfig(staticDir string) *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: testSecret, AccessTTL: time.Hour},
		Server: config.ServerConfig{
			Addr:           "127.0.0.1:0",
			CORSOrigins:    []string{"http://localhost:5173"},
			StaticDir:      staticDir,
			RateLimitRPS:   100,
			RateLimitBurst: 100,
		},
	}
}

func newTestServer(t *testing.T, staticDir string, ping func(context.Context) error) *server.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := presence.NewRegistry()
	tasks := &listOnlyTasks{tasks: []*domain.Task{{ID: uuid.New(), Title: "Write report"}}}
	srv := server.New(ctx, testConfig(staticDir), server.Deps{
		Tasks:    tasks,
		Presence: reg,
		Hub:      ws.NewHub(reg, noIdentity{}, ws.Options{}),
		Ping:     ping,
	})
	return srv
}

func do(t *testing.T, srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, "", func(context.Context) error { return nil })

		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, "", func(context.Context) error { return errors.New("connection refused") })

		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("no ping configured", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, "", nil)

		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAPIRequiresToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, "", nil)

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.IssueAccessToken(testSecret, uuid.New(), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = do(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body []domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Write report", body[0].Title)
}

func TestPresenceRequiresToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, "", nil)

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/presence", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, "", nil)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		return do(t, srv, req)
	}

	rec := preflight("http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = preflight("http://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebClientFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>board</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))

	srv := newTestServer(t, dir, nil)

	t.Run("client route serves index", func(t *testing.T) {
		t.Parallel()
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/tasks/123", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "board")
	})

	t.Run("asset served as is", func(t *testing.T) {
		t.Parallel()
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/app.js", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "console.log")
	})

	t.Run("unknown api path stays 404", func(t *testing.T) {
		t.Parallel()
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestShutdownClosesHub(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
