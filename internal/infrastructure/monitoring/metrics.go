package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Dispatch metrics (message router)
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// Session metrics
	SessionsStored   prometheus.Gauge
	SessionsSaved    prometheus.Counter
	SessionsSwitched prometheus.Counter
	SessionsImported prometheus.Counter

	// Browser metrics
	BrowserCalls    *prometheus.CounterVec
	BrowserDuration *prometheus.HistogramVec
	BrowserAttached prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for the health/stats endpoints - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for JSON endpoints
type Snapshot struct {
	TotalRequests  int64
	TotalErrors    int64
	TotalDispatch  int64
	DeniedDispatch int64
	StoredSessions int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionvault_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionvault_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionvault_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionvault_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Dispatch metrics
		DispatchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionvault_dispatch_total",
				Help: "Total number of dispatched messages",
			},
			[]string{"action", "status"},
		),
		DispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionvault_dispatch_duration_seconds",
				Help:    "Message dispatch duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"action"},
		),

		// Session metrics
		SessionsStored: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionvault_sessions_stored",
				Help: "Number of sessions in the store",
			},
		),
		SessionsSaved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionvault_sessions_saved_total",
				Help: "Total number of sessions saved",
			},
		),
		SessionsSwitched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionvault_sessions_switched_total",
				Help: "Total number of session switches applied to the browser",
			},
		),
		SessionsImported: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionvault_sessions_imported_total",
				Help: "Total number of sessions imported",
			},
		),

		// Browser metrics
		BrowserCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionvault_browser_calls_total",
				Help: "Total number of DevTools protocol calls",
			},
			[]string{"method", "status"},
		),
		BrowserDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionvault_browser_duration_seconds",
				Help:    "DevTools protocol call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		BrowserAttached: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionvault_browser_attached",
				Help: "Whether a DevTools connection is currently attached (0 or 1)",
			},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionvault_uptime_seconds",
				Help: "Daemon uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordDispatch records a routed message and its outcome
func (m *Metrics) RecordDispatch(action, status string, duration time.Duration) {
	m.DispatchTotal.WithLabelValues(action, status).Inc()
	m.DispatchDuration.WithLabelValues(action).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalDispatch++
	if status == "denied" {
		m.snapshot.DeniedDispatch++
	}
	m.mu.Unlock()
}

// RecordBrowserCall records a DevTools protocol call
func (m *Metrics) RecordBrowserCall(method, status string, duration time.Duration) {
	m.BrowserCalls.WithLabelValues(method, status).Inc()
	m.BrowserDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetBrowserAttached flips the DevTools connection gauge
func (m *Metrics) SetBrowserAttached(attached bool) {
	if attached {
		m.BrowserAttached.Set(1)
	} else {
		m.BrowserAttached.Set(0)
	}
}

// SetSessionsStored sets the stored-session gauge
func (m *Metrics) SetSessionsStored(count int) {
	m.SessionsStored.Set(float64(count))
	m.mu.Lock()
	m.snapshot.StoredSessions = int64(count)
	m.mu.Unlock()
}

// IncSessionsSaved increments the sessions saved counter
func (m *Metrics) IncSessionsSaved() {
	m.SessionsSaved.Inc()
}

// IncSessionsSwitched increments the session switch counter
func (m *Metrics) IncSessionsSwitched() {
	m.SessionsSwitched.Inc()
}

// AddSessionsImported adds to the imported-session counter
func (m *Metrics) AddSessionsImported(count int) {
	m.SessionsImported.Add(float64(count))
}

// GetSnapshot returns the current snapshot values
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
