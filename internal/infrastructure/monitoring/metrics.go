package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation in tests.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive   prometheus.Gauge
	SessionsCreated  *prometheus.CounterVec
	SessionsDisposed *prometheus.CounterVec
	SpawnFailures    prometheus.Counter
	ThemeBroadcasts  prometheus.Counter

	// Persistence metrics
	CheckpointWrites    *prometheus.CounterVec
	MultiplexerCommands *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics registers the collectors with reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration against the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termtab_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "termtab_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	m.SessionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "termtab_sessions_active",
		Help: "Number of terminal sessions in the registry",
	})
	m.SessionsCreated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termtab_sessions_created_total",
			Help: "Terminal sessions created, by origin (new, restore)",
		},
		[]string{"origin"},
	)
	m.SessionsDisposed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termtab_sessions_disposed_total",
			Help: "Terminal sessions disposed, by reason",
		},
		[]string{"reason"},
	)
	m.SpawnFailures = factory.NewCounter(prometheus.CounterOpts{
		Name: "termtab_spawn_failures_total",
		Help: "Child processes that failed to start",
	})
	m.ThemeBroadcasts = factory.NewCounter(prometheus.CounterOpts{
		Name: "termtab_theme_broadcasts_total",
		Help: "Appearance change broadcasts sent to all sessions",
	})

	m.CheckpointWrites = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termtab_checkpoint_writes_total",
			Help: "Session state checkpoint writes, by result",
		},
		[]string{"result"},
	)
	m.MultiplexerCommands = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termtab_multiplexer_commands_total",
			Help: "Multiplexer control commands, by command and result",
		},
		[]string{"command", "result"},
	)

	m.WSConnections = factory.NewGauge(prometheus.GaugeOpts{
		Name: "termtab_ws_connections",
		Help: "Number of open UI surface connections",
	})
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termtab_ws_messages_total",
			Help: "Total number of surface messages",
		},
		[]string{"direction", "type"},
	)

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "termtab_uptime_seconds",
			Help: "Host uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetSessionsActive sets the number of registered sessions
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
}

// IncSessionsCreated counts a new session by origin
func (m *Metrics) IncSessionsCreated(origin string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(origin).Inc()
}

// IncSessionsDisposed counts a disposal by reason
func (m *Metrics) IncSessionsDisposed(reason string) {
	if m == nil {
		return
	}
	m.SessionsDisposed.WithLabelValues(reason).Inc()
}

// IncSpawnFailures counts a failed process start
func (m *Metrics) IncSpawnFailures() {
	if m == nil {
		return
	}
	m.SpawnFailures.Inc()
}

// IncThemeBroadcasts counts an appearance broadcast
func (m *Metrics) IncThemeBroadcasts() {
	if m == nil {
		return
	}
	m.ThemeBroadcasts.Inc()
}

// RecordCheckpoint records a checkpoint write outcome
func (m *Metrics) RecordCheckpoint(err error) {
	if m == nil {
		return
	}
	m.CheckpointWrites.WithLabelValues(result(err)).Inc()
}

// RecordMultiplexerCommand records a multiplexer control command outcome
func (m *Metrics) RecordMultiplexerCommand(command string, err error) {
	if m == nil {
		return
	}
	m.MultiplexerCommands.WithLabelValues(command, result(err)).Inc()
}

// IncWSConnections increments open surface connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements open surface connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordWSMessage records a surface message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
