package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for dataset sync and shelter ranking.
type Metrics struct {
	DatasetSyncs      *prometheus.CounterVec // labels: source, outcome={success,error,skipped}
	ParseSkippedRows  *prometheus.CounterVec // labels: source
	SheltersLoaded    *prometheus.GaugeVec   // labels: source
	ResolveRequests   *prometheus.CounterVec // labels: outcome={success,invalid,denied,error}
	ResolveDuration   prometheus.Histogram
	StreamSubscribers prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DatasetSyncs,
		m.ParseSkippedRows,
		m.SheltersLoaded,
		m.ResolveRequests,
		m.ResolveDuration,
		m.StreamSubscribers,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build
// many instances without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DatasetSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelter_finder",
			Name:      "dataset_syncs_total",
			Help:      "Dataset sync attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		ParseSkippedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelter_finder",
			Name:      "shelter_parse_skipped_rows_total",
			Help:      "Malformed shelter records skipped during parsing.",
		}, []string{"source"}),
		SheltersLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shelter_finder",
			Name:      "shelters_loaded",
			Help:      "Valid shelters in the latest snapshot of each source.",
		}, []string{"source"}),
		ResolveRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelter_finder",
			Name:      "resolve_requests_total",
			Help:      "Nearest-shelter requests by outcome.",
		}, []string{"outcome"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shelter_finder",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent ranking shelters for one request.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		StreamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shelter_finder",
			Name:      "stream_subscribers",
			Help:      "Open dataset event streams.",
		}),
	}
}
