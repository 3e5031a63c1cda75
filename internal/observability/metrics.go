package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for
// the aggregation service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // labels: operation, outcome={success,error}
	RequestDuration *prometheus.HistogramVec // labels: operation
	RowsAssembled   prometheus.Counter

	CrossoverMatches prometheus.Histogram
	StoreReady       prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the
// default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xover",
			Name:      "requests_total",
			Help:      "Core operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xover",
			Name:      "request_duration_seconds",
			Help:      "Duration of core operations, query plus assembly.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		RowsAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xover",
			Name:      "rows_assembled_total",
			Help:      "Total flat rows folded into nested output.",
		}),
		CrossoverMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "xover",
			Name:      "crossover_matches",
			Help:      "Number of data sets matched per crossover search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
		}),
		StoreReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xover",
			Name:      "store_ready",
			Help:      "1 when the backing store answered the last readiness ping.",
		}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RowsAssembled,
		m.CrossoverMatches,
		m.StoreReady,
	)

	return m
}

// NewMetricsForTesting creates Metrics with no registry attached to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RequestsTotal:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "xover", Name: "requests_total"}, []string{"operation", "outcome"}),
		RequestDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "xover", Name: "request_duration_seconds"}, []string{"operation"}),
		RowsAssembled:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "xover", Name: "rows_assembled_total"}),
		CrossoverMatches: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "xover", Name: "crossover_matches"}),
		StoreReady:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "xover", Name: "store_ready"}),
	}
}
