package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "avydash"

// Metrics holds the Prometheus collectors for the tick loop.
type Metrics struct {
	FetchAttempts  *prometheus.CounterVec // labels: outcome={complete,partial,failed,abandoned}
	FetchDuration  prometheus.Histogram
	BackoffSeconds prometheus.Gauge
	CacheAge       prometheus.Gauge
	Stale          prometheus.Gauge

	Taps            *prometheus.CounterVec // labels: gesture={tap,drag,hold}
	Redraws         prometheus.Counter
	ViewTransitions *prometheus.CounterVec // labels: view
	LoopRunning     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Forecast fetch attempts by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time from starting a fetch to its terminal status.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		BackoffSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backoff_seconds",
			Help:      "Delay before the next fetch attempt.",
		}),
		CacheAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_age_seconds",
			Help:      "Age of the last complete forecast.",
		}),
		Stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_stale",
			Help:      "1 when the shown forecast is older than the stale threshold.",
		}),
		Taps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taps_total",
			Help:      "Completed touches by what they resolved to.",
		}, []string{"gesture"}),
		Redraws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redraws_total",
			Help:      "Frames drawn.",
		}),
		ViewTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_transitions_total",
			Help:      "View changes by target view.",
		}, []string{"view"}),
		LoopRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loop_running",
			Help:      "1 while the tick loop runs, 0 after shutdown.",
		}),
	}
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.FetchAttempts,
		m.FetchDuration,
		m.BackoffSeconds,
		m.CacheAge,
		m.Stale,
		m.Taps,
		m.Redraws,
		m.ViewTransitions,
		m.LoopRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics, so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
