package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Terminal.Workspace = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/health", http.StatusOK, `"status":"healthy"`},
		{"/terminals", http.StatusOK, `"count":0`},
		{"/terminals/restorable", http.StatusOK, `"count":0`},
		{"/terminals/term_missing", http.StatusNotFound, "terminal not found"},
		{"/appearance", http.StatusOK, `"fontFamily"`},
		{"/metrics", http.StatusOK, "termtab_uptime_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, srv, tt.path)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestServerRecordsRequestMetrics(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	w := get(t, srv, "/health")
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = get(t, srv, "/metrics")
	assert.Contains(t, w.Body.String(), `termtab_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestServerRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.State.Backend = "etcd"
	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestServerDefaultPaths(t *testing.T) {
	cfg := testConfig(t)
	newTestServer(t, cfg)

	configHome := os.Getenv("XDG_CONFIG_HOME")
	assert.Equal(t, filepath.Join(os.Getenv("XDG_STATE_HOME"), "terminal-tab"), cfg.State.Path)
	assert.Equal(t, filepath.Join(configHome, "terminal-tab", "shell.yaml"), cfg.Terminal.ShellConfig)
	assert.Equal(t, filepath.Join(configHome, "terminal-tab", "appearance.toml"), cfg.Appearance.File)
	assert.DirExists(t, filepath.Join(configHome, "terminal-tab"))
}

func TestServerAppearanceFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Appearance.File = filepath.Join(t.TempDir(), "appearance.toml")
	require.NoError(t, os.WriteFile(cfg.Appearance.File, []byte("font_size = 15\n"), 0o644))
	srv := newTestServer(t, cfg)

	w := get(t, srv, "/appearance")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fontSize":15`)
}
