// Package metrics provides Prometheus metrics for the scorekeep
// leaderboard engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus metric the engine emits.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Submission pipeline
	submissionsAccepted  prometheus.Counter
	submissionsRejected  prometheus.Counter
	personalBestImproved prometheus.Counter

	// Score store
	storeAppendLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram
	storeFallbacks     prometheus.Counter

	// Leaderboard cache
	cacheUpdateLatency  prometheus.Histogram
	cacheQueryLatency   prometheus.Histogram
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	cacheErrorsAbsorbed prometheus.Counter

	// Cache rebuilder
	rebuildScheduled prometheus.Counter
	rebuildCompleted prometheus.Counter
	rebuildDuplicate prometheus.Counter
	rebuildQueueSize prometheus.Gauge
	rebuildWorkers   prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scorekeep",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.submissionsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_accepted_total",
		Help:      "Total number of score submissions durably persisted",
	})
	m.submissionsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_rejected_total",
		Help:      "Total number of submissions failing validation",
	})
	m.personalBestImproved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "personal_best_improved_total",
		Help:      "Total number of submissions that improved a cached personal best",
	})

	m.storeAppendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_append_latency_milliseconds",
		Help:      "Histogram of durable append latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Histogram of store ranking query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.storeFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_fallbacks_total",
		Help:      "Total number of reads answered by the store because the cache could not serve a full page",
	})

	m.cacheUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_update_latency_milliseconds",
		Help:      "Histogram of cache upsert latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.cacheQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_query_latency_milliseconds",
		Help:      "Histogram of cache read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Total number of reads served from the leaderboard cache",
	})
	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Total number of cache reads returning no or partial data",
	})
	m.cacheErrorsAbsorbed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_errors_absorbed_total",
		Help:      "Total number of cache failures absorbed by falling back to the store",
	})

	m.rebuildScheduled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rebuild_scheduled_total",
		Help:      "Total number of cache rebuild jobs accepted",
	})
	m.rebuildCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rebuild_completed_total",
		Help:      "Total number of cache rebuild jobs finished",
	})
	m.rebuildDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rebuild_duplicate_total",
		Help:      "Total number of rebuild requests dropped because the key was already in flight",
	})
	m.rebuildQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rebuild_queue_size",
		Help:      "Current number of queued rebuild jobs",
	})
	m.rebuildWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rebuild_workers",
		Help:      "Number of rebuild workers",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors by component and kind",
		},
		[]string{"component", "kind"},
	)
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Global helpers mirror the Manager fields for call-site brevity.

func RecordSubmissionAccepted() { globalManager.submissionsAccepted.Inc() }
func RecordSubmissionRejected() { globalManager.submissionsRejected.Inc() }
func RecordPersonalBestImproved() { globalManager.personalBestImproved.Inc() }
func RecordStoreFallback() { globalManager.storeFallbacks.Inc() }
func RecordCacheHit() { globalManager.cacheHits.Inc() }
func RecordCacheMiss() { globalManager.cacheMisses.Inc() }
func RecordCacheErrorAbsorbed() { globalManager.cacheErrorsAbsorbed.Inc() }
func RecordRebuildScheduled() { globalManager.rebuildScheduled.Inc() }
func RecordRebuildCompleted() { globalManager.rebuildCompleted.Inc() }
func RecordRebuildDuplicate() { globalManager.rebuildDuplicate.Inc() }

func RecordStoreAppendLatency(ms float64) { globalManager.storeAppendLatency.Observe(ms) }
func RecordStoreQueryLatency(ms float64) { globalManager.storeQueryLatency.Observe(ms) }
func RecordCacheUpdateLatency(ms float64) { globalManager.cacheUpdateLatency.Observe(ms) }
func RecordCacheQueryLatency(ms float64) { globalManager.cacheQueryLatency.Observe(ms) }

func UpdateRebuildQueueSize(n int) { globalManager.rebuildQueueSize.Set(float64(n)) }
func UpdateRebuildWorkerCount(n int) { globalManager.rebuildWorkers.Set(float64(n)) }

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByComponent records an error against a component.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}
