package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-route request counts and latencies.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	panics   *prometheus.CounterVec
}

// NewMetrics creates HTTP metrics and registers them with reg. A nil reg
// leaves them unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avydash",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Status server requests by route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "avydash",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status server request latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}, []string{"method", "route"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avydash",
			Subsystem: "http",
			Name:      "panics_total",
			Help:      "Status server handler panics recovered, by route.",
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.panics)
	}
	return m
}

// Middleware records every request under its chi route pattern so path
// parameters do not explode the label set.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := routePattern(r)
			m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.statusCode)).Inc()
			m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Panics exposes the recovered panic counter for tests.
func (m *Metrics) Panics() *prometheus.CounterVec {
	return m.panics
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Requests exposes the request counter for tests.
func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}
