// Package metrics provides Prometheus metrics for the readiness engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache layers reported by CacheHit.
const (
	LayerCache     = "cache"
	LayerPersisted = "persisted"
	LayerInflight  = "inflight"
)

// Manager holds the engine's metrics. A nil *Manager records nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	assessmentsComputed prometheus.Counter
	cacheHits           *prometheus.CounterVec
	dataQualityErrors   prometheus.Counter
	computeDuration     prometheus.Histogram
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for the duration histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry sets the registerer metrics are registered on.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates and registers the metrics. The default registerer is
// prometheus.DefaultRegisterer; registering twice on one registerer panics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "readiness",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.assessmentsComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "assessments_computed_total",
		Help:      "Total number of readiness assessments computed (cache misses)",
	})

	m.cacheHits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of assessments served without recomputation, by layer",
	}, []string{"layer"})

	m.dataQualityErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "data_quality_errors_total",
		Help:      "Total number of days rejected for physiologically impossible samples",
	})

	m.computeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "compute_duration_seconds",
		Help:      "Time spent computing and persisting one assessment",
		Buckets:   m.histogramBuckets,
	})

	return m
}

// AssessmentComputed records one computed assessment and its duration.
func (m *Manager) AssessmentComputed(d time.Duration) {
	if m == nil {
		return
	}
	m.assessmentsComputed.Inc()
	m.computeDuration.Observe(d.Seconds())
}

// CacheHit records an assessment served from layer.
func (m *Manager) CacheHit(layer string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(layer).Inc()
}

// DataQualityError records a rejected day.
func (m *Manager) DataQualityError() {
	if m == nil {
		return
	}
	m.dataQualityErrors.Inc()
}
