package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSessionCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncSessionsCreated("new")
	m.IncSessionsCreated("new")
	m.IncSessionsCreated("restore")
	m.IncSessionsDisposed("closed")
	m.SetSessionsActive(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsCreated.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCreated.WithLabelValues("restore")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsDisposed.WithLabelValues("closed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsActive))
}

func TestResultLabels(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCheckpoint(nil)
	m.RecordCheckpoint(errors.New("disk full"))
	m.RecordMultiplexerCommand("kill-session", errors.New("no server"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointWrites.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointWrites.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MultiplexerCommands.WithLabelValues("kill-session", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncSessionsCreated("new")
		m.IncSessionsDisposed("exited")
		m.RecordCheckpoint(nil)
		m.RecordWSMessage("in", "stdin")
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/terminals/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"term_a", "term_b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/terminals/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/terminals/:id", "200")))
}
