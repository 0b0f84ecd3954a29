// Package metrics provides Prometheus metrics for block pages.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/cache"
)

const namespace = "blockpage"

// Metrics holds every collector. Each instance has its own registry so
// tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RenderDuration     *prometheus.HistogramVec
	PlaceholdersTotal  *prometheus.CounterVec
	OpsTotal           *prometheus.CounterVec
	OpDuration         *prometheus.HistogramVec
	OpenSessions       prometheus.Gauge
	ValidationFailures *prometheus.CounterVec
}

// New creates the metrics and registers them, with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RenderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_render_duration_seconds",
			Help:      "Time to render one block",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"type"}),
		PlaceholdersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_placeholders_total",
			Help:      "Blocks rendered as a placeholder",
		}, []string{"type"}),
		OpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_ops_total",
			Help:      "Block write operations by outcome",
		}, []string{"op", "outcome"}),
		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_op_duration_seconds",
			Help:      "Block write operation duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		OpenSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Number of open edit sessions",
		}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Saves rejected by validation",
		}, []string{"type"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRender records the render time of one block.
func (m *Metrics) ObserveRender(t blocks.Type, d time.Duration) {
	m.RenderDuration.WithLabelValues(string(t)).Observe(d.Seconds())
}

// ObservePlaceholder counts a block rendered as a placeholder.
func (m *Metrics) ObservePlaceholder(t blocks.Type) {
	m.PlaceholdersTotal.WithLabelValues(string(t)).Inc()
}

// ObserveOp records a block write.
func (m *Metrics) ObserveOp(op, outcome string, d time.Duration) {
	m.OpsTotal.WithLabelValues(op, outcome).Inc()
	m.OpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SessionsOpen sets the open session gauge.
func (m *Metrics) SessionsOpen(n int) {
	m.OpenSessions.Set(float64(n))
}

// ObserveValidation counts a save rejected by validation.
func (m *Metrics) ObserveValidation(t blocks.Type) {
	m.ValidationFailures.WithLabelValues(string(t)).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// WatchCache exports the entry count and hit counters of c.
func (m *Metrics) WatchCache(c *cache.Cache) {
	f := promauto.With(m.registry)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Pages held in the block list cache",
	}, func() float64 { return float64(c.GetStats().Entries) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Block list cache hits",
	}, func() float64 { return float64(c.GetStats().Hits) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Block list cache misses",
	}, func() float64 { return float64(c.GetStats().Misses) })
}
