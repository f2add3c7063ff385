// Package metrics provides Prometheus metrics for the speedglobe service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets covers a cache hit (sub-millisecond) up to a slow
// geocoder round trip or a full resolution pass, in milliseconds.
var latencyBuckets = []float64{0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // shared default

// Manager manages all Prometheus metrics for the speedglobe service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Ingestion
	rowsIngested   prometheus.Counter
	rowDiagnostics *prometheus.CounterVec
	datasetsLoaded *prometheus.CounterVec
	recordsTotal   prometheus.Gauge
	pointsTotal    prometheus.Gauge

	// Coordinate resolution
	geocodeRequests    *prometheus.CounterVec
	geocodeLatency     *prometheus.HistogramVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheErrors        *prometheus.CounterVec
	fallbackPlacements prometheus.Counter
	resolutionDuration prometheus.Histogram
	resolutionPending  prometheus.Gauge

	// View and renderers
	viewUpdates  *prometheus.CounterVec
	wsClients    prometheus.Gauge
	wsBroadcasts prometheus.Counter

	// Ranking store
	rankingRebuildDuration prometheus.Histogram
	rankingEntries         prometheus.Gauge
	rankingQueryLatency    prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Option configures a Manager before its metrics are registered.
type Option func(*Manager)

// WithNamespace names the metric families namespace_subsystem_name. Empty
// parts keep the speedglobe_globe default.
func WithNamespace(namespace, subsystem string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets replaces the millisecond buckets shared by every
// latency histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithCustomLabels attaches constant labels, e.g. a deployment name.
func WithCustomLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if labels != nil {
			m.customLabels = labels
		}
	}
}

// WithPrometheusRegistry registers into r instead of the default registerer.
func WithPrometheusRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "speedglobe",
		subsystem:        "globe",
		histogramBuckets: latencyBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ingestion
	m.rowsIngested = m.counter("rows_ingested_total", "Total number of CSV rows normalized into records")
	m.rowDiagnostics = m.counterVec("row_diagnostics_total", "Row-level normalization diagnostics by reason", "reason")
	m.datasetsLoaded = m.counterVec("datasets_loaded_total", "Dataset loads by origin and outcome", "origin", "outcome")
	m.recordsTotal = m.gauge("records", "Records in the active dataset")
	m.pointsTotal = m.gauge("points", "World points for the active year before region filtering")

	// Coordinate resolution
	m.geocodeRequests = m.counterVec("geocode_requests_total", "Geocoder lookups by source and outcome", "source", "outcome")
	m.geocodeLatency = m.histogramVec("geocode_latency_milliseconds", "Geocoder lookup latency in milliseconds", "source")
	m.cacheHits = m.counter("coordinate_cache_hits_total", "Coordinate cache hits")
	m.cacheMisses = m.counter("coordinate_cache_misses_total", "Coordinate cache misses")
	m.cacheErrors = m.counterVec("coordinate_cache_errors_total", "Coordinate cache backend errors", "backend", "op")
	m.fallbackPlacements = m.counter("fallback_placements_total", "Records placed with synthetic coordinates")
	m.resolutionDuration = m.histogram("resolution_duration_milliseconds", "Duration of a full resolution pass in milliseconds")
	m.resolutionPending = m.gauge("resolution_pending", "Records waiting for coordinate resolution")

	// View and renderers
	m.viewUpdates = m.counterVec("view_updates_total", "View state mutations by changed field", "field")
	m.wsClients = m.gauge("websocket_clients", "Connected renderer websocket clients")
	m.wsBroadcasts = m.counter("websocket_broadcasts_total", "Frames pushed to renderer clients")

	// Ranking store
	m.rankingRebuildDuration = m.histogram("ranking_rebuild_duration_milliseconds", "Ranking rebuild duration in milliseconds")
	m.rankingEntries = m.gauge("ranking_entries", "Entries in the ranking store")
	m.rankingQueryLatency = m.histogram("ranking_query_latency_milliseconds", "Ranking query latency in milliseconds")

	// HTTP
	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	// Queue
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the resolution queue")
	m.queueSize = m.gauge("queue_size", "Current size of the resolution queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Resolution queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Jobs enqueued for resolution")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Jobs dequeued by resolution workers")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs rejected by the resolution queue")

	// Worker
	m.workerActiveCount = m.gauge("worker_active_count", "Resolution workers currently running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-job processing latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Jobs whose handler returned an error")

	// Errors
	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of failed operations in milliseconds",
		"component", "error_type")

	// System
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Ingestion Metrics Functions.

// RecordRowsIngested adds n normalized rows.
func RecordRowsIngested(n int) {
	globalManager.rowsIngested.Add(float64(n))
}

// RecordRowDiagnostic counts one diagnostic with the given reason.
func RecordRowDiagnostic(reason string) {
	globalManager.rowDiagnostics.WithLabelValues(reason).Inc()
}

// RecordDatasetLoad counts a dataset load attempt.
func RecordDatasetLoad(origin, outcome string) {
	globalManager.datasetsLoaded.WithLabelValues(origin, outcome).Inc()
}

// UpdateRecordsTotal sets the number of records in the active dataset.
func UpdateRecordsTotal(count int) {
	globalManager.recordsTotal.Set(float64(count))
}

// UpdatePointsTotal sets the number of world points for the active year.
func UpdatePointsTotal(count int) {
	globalManager.pointsTotal.Set(float64(count))
}

// Resolution Metrics Functions.

// RecordGeocodeRequest counts a geocoder lookup.
func RecordGeocodeRequest(source, outcome string) {
	globalManager.geocodeRequests.WithLabelValues(source, outcome).Inc()
}

// RecordGeocodeLatency observes a geocoder lookup latency.
func RecordGeocodeLatency(source string, latencyMs float64) {
	globalManager.geocodeLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordCacheHit increments the coordinate cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the coordinate cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheError counts a cache backend failure.
func RecordCacheError(backend, op string) {
	globalManager.cacheErrors.WithLabelValues(backend, op).Inc()
}

// RecordFallbackPlacement increments the synthetic placement counter.
func RecordFallbackPlacement() {
	globalManager.fallbackPlacements.Inc()
}

// RecordResolutionDuration observes a full resolution pass.
func RecordResolutionDuration(latencyMs float64) {
	globalManager.resolutionDuration.Observe(latencyMs)
}

// UpdateResolutionPending sets the number of records awaiting resolution.
func UpdateResolutionPending(count int) {
	globalManager.resolutionPending.Set(float64(count))
}

// View Metrics Functions.

// RecordViewUpdate counts a view state mutation of field.
func RecordViewUpdate(field string) {
	globalManager.viewUpdates.WithLabelValues(field).Inc()
}

// UpdateWebSocketClients sets the number of connected renderer clients.
func UpdateWebSocketClients(count int) {
	globalManager.wsClients.Set(float64(count))
}

// RecordWebSocketBroadcast increments the pushed frame counter.
func RecordWebSocketBroadcast() {
	globalManager.wsBroadcasts.Inc()
}

// Ranking Metrics Functions.

// RecordRankingRebuildDuration observes a ranking rebuild.
func RecordRankingRebuildDuration(latencyMs float64) {
	globalManager.rankingRebuildDuration.Observe(latencyMs)
}

// UpdateRankingEntries sets the number of ranked entries.
func UpdateRankingEntries(count int) {
	globalManager.rankingEntries.Set(float64(count))
}

// RecordRankingQueryLatency observes a ranking query.
func RecordRankingQueryLatency(latencyMs float64) {
	globalManager.rankingQueryLatency.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
