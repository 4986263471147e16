package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Chat transport metrics
	ChatFrames     *prometheus.CounterVec
	ChatDropped    *prometheus.CounterVec
	ChatReconnects prometheus.Counter
	ChatState      *prometheus.GaugeVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// REST client metrics
	APICalls    *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
	APIErrors   *prometheus.CounterVec

	// HTTP server metrics (mock backend)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for status output
type Snapshot struct {
	FramesHandled int64
	FramesDropped int64
	Reconnects    int64
	APICalls      int64
	APIErrors     int64
}

// NewMetrics creates a metrics collector registered on reg. A nil reg gives
// an unregistered collector, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChatFrames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arc_chat_frames_total",
				Help: "Total number of chat stream frames handled, by code",
			},
			[]string{"code"},
		),
		ChatDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arc_chat_frames_dropped_total",
				Help: "Total number of chat stream lines dropped, by reason",
			},
			[]string{"reason"},
		),
		ChatReconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arc_chat_reconnects_total",
				Help: "Total number of scheduled chat reconnect attempts",
			},
		),
		ChatState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arc_chat_connection_state",
				Help: "1 for the current chat connection state, 0 otherwise",
			},
			[]string{"state"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "arc_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arc_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		APICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arc_api_calls_total",
				Help: "Total number of REST calls to the workspace backend",
			},
			[]string{"method", "route", "status"},
		),
		APIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arc_api_duration_seconds",
				Help:    "REST call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		APIErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arc_api_errors_total",
				Help: "Total number of failed REST calls",
			},
			[]string{"method", "route", "error_type"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arc_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arc_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}
}

// RecordFrame records a handled stream frame
func (m *Metrics) RecordFrame(code string) {
	m.ChatFrames.WithLabelValues(code).Inc()
	m.mu.Lock()
	m.snapshot.FramesHandled++
	m.mu.Unlock()
}

// RecordDropped records a stream line that was discarded
func (m *Metrics) RecordDropped(reason string) {
	m.ChatDropped.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.snapshot.FramesDropped++
	m.mu.Unlock()
}

// IncReconnects records a scheduled reconnect attempt
func (m *Metrics) IncReconnects() {
	m.ChatReconnects.Inc()
	m.mu.Lock()
	m.snapshot.Reconnects++
	m.mu.Unlock()
}

// SetChatState marks state as the only active connection state
func (m *Metrics) SetChatState(state string, all []string) {
	for _, s := range all {
		value := 0.0
		if s == state {
			value = 1
		}
		m.ChatState.WithLabelValues(s).Set(value)
	}
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// RecordAPICall records a REST call
func (m *Metrics) RecordAPICall(method, route, status string, duration time.Duration) {
	m.APICalls.WithLabelValues(method, route, status).Inc()
	m.APIDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.APICalls++
	m.mu.Unlock()
}

// RecordAPIError records a failed REST call
func (m *Metrics) RecordAPIError(method, route, errorType string) {
	m.APIErrors.WithLabelValues(method, route, errorType).Inc()
	m.mu.Lock()
	m.snapshot.APIErrors++
	m.mu.Unlock()
}

// RecordHTTPRequest records a request served by the mock backend
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Snapshot returns a copy of the running totals
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
