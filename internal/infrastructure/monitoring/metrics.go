package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Call outcomes used as the "outcome" label.
const (
	OutcomeSuccess    = "success"
	OutcomeHTTPError  = "http_error"
	OutcomeNetwork    = "network_error"
	OutcomeCircuit    = "circuit_open"
	OutcomeBadRequest = "bad_request"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Executor metrics
	CallsTotal     *prometheus.CounterVec
	CallDuration   *prometheus.HistogramVec
	BreakerChanges *prometheus.CounterVec
	CookiesStored  prometheus.Counter

	// Relay metrics
	RelayForwards *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON status API
type Snapshot struct {
	TotalRequests int64            `json:"total_requests"`
	TotalErrors   int64            `json:"total_errors"`
	Calls         map[string]int64 `json:"calls"`
	CallFailures  map[string]int64 `json:"call_failures"`
	Connections   int64            `json:"connections"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		snapshot: Snapshot{
			Calls:        make(map[string]int64),
			CallFailures: make(map[string]int64),
		},

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_executor_calls_total",
				Help: "Total number of executor calls",
			},
			[]string{"service", "outcome"},
		),
		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_executor_call_duration_seconds",
				Help:    "Executor call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),
		BreakerChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"service", "to"},
		),
		CookiesStored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_cookies_stored_total",
				Help: "Total number of cookies written to the cookie store",
			},
		),

		RelayForwards: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_relay_forwards_total",
				Help: "Total number of page requests forwarded by the relay",
			},
			[]string{"service", "outcome"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_ws_connections",
				Help: "Number of active runtime WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_ws_messages_total",
				Help: "Total number of runtime WebSocket frames",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "bridge_uptime_seconds",
			Help: "Bridge uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler for m.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCall records one executor call
func (m *Metrics) RecordCall(service, outcome string, duration time.Duration) {
	m.CallsTotal.WithLabelValues(service, outcome).Inc()
	m.CallDuration.WithLabelValues(service).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Calls[service]++
	if outcome != OutcomeSuccess {
		m.snapshot.CallFailures[service]++
	}
	m.mu.Unlock()
}

// RecordBreakerChange records a circuit breaker transition
func (m *Metrics) RecordBreakerChange(service, to string) {
	m.BreakerChanges.WithLabelValues(service, to).Inc()
}

// AddCookiesStored counts cookies written back to the store
func (m *Metrics) AddCookiesStored(n int) {
	m.CookiesStored.Add(float64(n))
}

// RecordRelayForward records one relay round trip
func (m *Metrics) RecordRelayForward(service, outcome string) {
	m.RelayForwards.WithLabelValues(service, outcome).Inc()
}

// RecordWSMessage records a WebSocket frame
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.Connections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.Connections--
	m.mu.Unlock()
}

// Snapshot returns a copy of the current values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.Calls = make(map[string]int64, len(m.snapshot.Calls))
	for k, v := range m.snapshot.Calls {
		s.Calls[k] = v
	}
	s.CallFailures = make(map[string]int64, len(m.snapshot.CallFailures))
	for k, v := range m.snapshot.CallFailures {
		s.CallFailures[k] = v
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
