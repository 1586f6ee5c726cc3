package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/routervm/uplinkctl/src/internal/errors"
)

const metricsNamespace = "uplinkctl"

// Metrics holds the Prometheus collectors of the API server. Each instance
// owns its registry so servers (and tests) do not share state.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	assignments  *prometheus.CounterVec
	tunnelOps    *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		assignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "assignments_total",
				Help:      "Segment assignment attempts by segment and result",
			},
			[]string{"segment", "result"},
		),
		tunnelOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tunnel_operations_total",
				Help:      "Tunnel connect and disconnect attempts by operation and result",
			},
			[]string{"operation", "result"},
		),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.assignments,
		m.tunnelOps,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeAssign(segment string, err error) {
	m.assignments.WithLabelValues(segment, resultLabel(err)).Inc()
}

func (m *Metrics) observeTunnelOp(op string, err error) {
	m.tunnelOps.WithLabelValues(op, resultLabel(err)).Inc()
}

// resultLabel is "ok" or the domain error code.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(errors.CodeOf(err))
}

// Instrument is a chi middleware that records HTTP request metrics.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		// The route pattern keeps path label cardinality bounded.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
