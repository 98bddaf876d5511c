package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "repoaudit"

// Metrics counts cache lookups and per-file analysis outcomes. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups *prometheus.CounterVec
	cacheErrors  *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	analyses     prometheus.Histogram
}

// NewMetrics registers the audit counters on a fresh registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result (hit or miss).",
		}, []string{"result"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Result cache storage errors by operation.",
		}, []string{"op"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_outcomes_total",
			Help:      "Per-file analysis outcomes by kind.",
		}, []string{"kind"}),
		analyses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of analysis calls including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.cacheLookups, m.cacheErrors, m.outcomes, m.analyses} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return m, nil
}

// CacheLookup records a hit or a miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheError records a failed get or put.
func (m *Metrics) CacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
}

// Outcome records a terminal per-file outcome.
func (m *Metrics) Outcome(kind string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind).Inc()
}

// AnalysisSeconds records the duration of one analysis call.
func (m *Metrics) AnalysisSeconds(s float64) {
	if m == nil {
		return
	}
	m.analyses.Observe(s)
}

// Gatherer exposes the registry for export.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current values to path in the Prometheus text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
