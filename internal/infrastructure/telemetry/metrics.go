package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Namespace        string
	HistogramBuckets []float64
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:        "salesdesk",
		HistogramBuckets: prometheus.DefBuckets,
	}
}

// Metrics exposes the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	checkoutStageDuration *prometheus.HistogramVec
	checkoutStageTotal    *prometheus.CounterVec
	checkoutOutcomesTotal *prometheus.CounterVec
	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	breakerState          *prometheus.GaugeVec
	openSessions          prometheus.Gauge
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "salesdesk"
	}
	if len(cfg.HistogramBuckets) == 0 {
		cfg.HistogramBuckets = prometheus.DefBuckets
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.checkoutStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "checkout",
			Name:      "stage_duration_seconds",
			Help:      "Duration of remote checkout stages in seconds.",
			Buckets:   cfg.HistogramBuckets,
		},
		[]string{"stage"},
	)

	m.checkoutStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "checkout",
			Name:      "stages_total",
			Help:      "Remote checkout stages by result.",
		},
		[]string{"stage", "result"},
	)

	m.checkoutOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "checkout",
			Name:      "outcomes_total",
			Help:      "Checkout runs by final state and failed stage.",
		},
		[]string{"state", "stage"},
	)

	m.upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests made to the ERP API.",
		},
		[]string{"operation", "status"},
	)

	m.upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of ERP API requests in seconds.",
			Buckets:   cfg.HistogramBuckets,
		},
		[]string{"operation"},
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "upstream",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)

	m.openSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "open",
			Help:      "Number of open checkout sessions.",
		},
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served.",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   cfg.HistogramBuckets,
		},
		[]string{"method", "route"},
	)

	m.registry.MustRegister(
		m.checkoutStageDuration,
		m.checkoutStageTotal,
		m.checkoutOutcomesTotal,
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.breakerState,
		m.openSessions,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveStage records one remote checkout stage
func (m *Metrics) ObserveStage(stage, result string, d time.Duration) {
	m.checkoutStageDuration.WithLabelValues(stage).Observe(d.Seconds())
	m.checkoutStageTotal.WithLabelValues(stage, result).Inc()
}

// RecordOutcome records the final state of a checkout run.
// stage is empty for completed runs.
func (m *Metrics) RecordOutcome(state, stage string) {
	m.checkoutOutcomesTotal.WithLabelValues(state, stage).Inc()
}

// ObserveUpstream records one ERP API request
func (m *Metrics) ObserveUpstream(operation, status string, d time.Duration) {
	m.upstreamRequestsTotal.WithLabelValues(operation, status).Inc()
	m.upstreamDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetBreakerState records the circuit breaker state
func (m *Metrics) SetBreakerState(name string, state int) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// SetOpenSessions records the number of open sessions
func (m *Metrics) SetOpenSessions(n int) {
	m.openSessions.Set(float64(n))
}

// ObserveHTTP records one served HTTP request
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
