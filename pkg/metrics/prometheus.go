// Package metrics provides Prometheus metrics for the one-to-one meetings service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Every histogram observes milliseconds.
var defaultLatencyBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // read-only default

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Storage Metrics - remote object store round trips
	storageRequests *prometheus.CounterVec
	storageLatency  *prometheus.HistogramVec
	storageRetries  prometheus.Counter

	// Cache Metrics - key-value client
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	writeConflicts *prometheus.CounterVec
	writeOutcomes  *prometheus.CounterVec

	// Polling Metrics
	pollChecks      *prometheus.CounterVec
	pollChanges     *prometheus.CounterVec
	activePollers   prometheus.Gauge
	pollCheckErrors prometheus.Counter

	// Business Metrics
	meetingsTotal     *prometheus.GaugeVec
	participantsTotal *prometheus.GaugeVec
	attendeesTotal    prometheus.Gauge
	paymentsTotal     *prometheus.GaugeVec
	meetingsCreated   prometheus.Counter
	meetingsDeleted   prometheus.Counter
	ruleRejections    *prometheus.CounterVec
	reportsRendered   prometheus.Counter
	reportRenderTime  prometheus.Histogram
	duplicateRequests prometheus.Counter

	// Timer Metrics
	timersActive prometheus.Gauge
	timerCues    *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	streamSubscribers   prometheus.Gauge

	// Queue Metrics - change event queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - change dispatch
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter
	eventsDispatched        *prometheus.CounterVec

	// Enhanced Error Metrics - Detailed error tracking
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
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "onetoone",
		subsystem:      "meetings",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.latencyBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.latencyBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.storageRequests = m.counterVec("storage_requests_total", "Remote store requests by operation and outcome", "op", "outcome")
	m.storageLatency = m.histogramVec("storage_latency_milliseconds", "Remote store request latency in milliseconds", "op")
	m.storageRetries = m.counter("storage_retries_total", "Retried idempotent remote store reads")

	m.cacheHits = m.counter("cache_hits_total", "Reads served from the key-value cache")
	m.cacheMisses = m.counter("cache_misses_total", "Reads that went to the remote store")
	m.writeConflicts = m.counterVec("write_conflicts_total", "Conditional writes rejected by a version conflict", "key")
	m.writeOutcomes = m.counterVec("write_outcomes_total", "Key-value writes by outcome", "outcome")

	m.pollChecks = m.counterVec("poll_checks_total", "Version checks issued by pollers", "key")
	m.pollChanges = m.counterVec("poll_changes_total", "External changes detected by pollers", "key")
	m.activePollers = m.gauge("pollers_active", "Running pollers")
	m.pollCheckErrors = m.counter("poll_check_errors_total", "Failed poller version checks")

	m.meetingsTotal = m.gaugeVec("meetings", "Scheduled meetings by round", "round")
	m.participantsTotal = m.gaugeVec("participants", "Roster size by round", "round")
	m.attendeesTotal = m.gauge("attendees", "Signed-in attendees")
	m.paymentsTotal = m.gaugeVec("payments", "Payment records by state", "state")
	m.meetingsCreated = m.counter("meetings_created_total", "Meetings created")
	m.meetingsDeleted = m.counter("meetings_deleted_total", "Meetings deleted")
	m.ruleRejections = m.counterVec("rule_rejections_total", "Meeting requests rejected by a pairing rule", "rule")
	m.reportsRendered = m.counter("reports_rendered_total", "PDF reports rendered")
	m.reportRenderTime = m.histogram("report_render_milliseconds", "PDF render time in milliseconds")
	m.duplicateRequests = m.counter("duplicate_requests_total", "Create requests replayed with a known idempotency key")

	m.timersActive = m.gauge("timers_active", "Timer sessions held in memory")
	m.timerCues = m.counterVec("timer_cues_total", "Timer cues fired by kind", "cue")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.streamSubscribers = m.gauge("stream_subscribers", "Connected change-stream clients")

	m.queueSize = m.gauge("queue_size", "Current size of the change event queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the change event queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of events enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue failures")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of dispatch workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Dispatch latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of dispatch errors")
	m.eventsDispatched = m.counterVec("events_dispatched_total", "Change events dispatched by kind", "kind")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that ended in an error", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time in milliseconds")
}

// Storage Metrics Functions.

// RecordStorageRequest records one remote store request.
func RecordStorageRequest(op, outcome string, latencyMs float64) {
	globalManager.storageRequests.WithLabelValues(op, outcome).Inc()
	globalManager.storageLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStorageRetry increments the retry counter.
func RecordStorageRetry() {
	globalManager.storageRetries.Inc()
}

// Cache Metrics Functions.

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordWriteConflict records a rejected conditional write for key.
func RecordWriteConflict(key string) {
	globalManager.writeConflicts.WithLabelValues(key).Inc()
}

// RecordWriteOutcome records the outcome of a key-value write.
func RecordWriteOutcome(outcome string) {
	globalManager.writeOutcomes.WithLabelValues(outcome).Inc()
}

// Polling Metrics Functions.

// RecordPollCheck records a version check for key.
func RecordPollCheck(key string) {
	globalManager.pollChecks.WithLabelValues(key).Inc()
}

// RecordPollChange records an external change detected for key.
func RecordPollChange(key string) {
	globalManager.pollChanges.WithLabelValues(key).Inc()
}

// RecordPollCheckError increments the failed check counter.
func RecordPollCheckError() {
	globalManager.pollCheckErrors.Inc()
}

// UpdateActivePollers sets the number of running pollers.
func UpdateActivePollers(count int) {
	globalManager.activePollers.Set(float64(count))
}

// Business Metrics Functions.

// UpdateMeetings sets the meeting gauge for a round.
func UpdateMeetings(round string, count int) {
	globalManager.meetingsTotal.WithLabelValues(round).Set(float64(count))
}

// UpdateParticipants sets the roster gauge for a round.
func UpdateParticipants(round string, count int) {
	globalManager.participantsTotal.WithLabelValues(round).Set(float64(count))
}

// UpdateAttendees sets the attendee gauge.
func UpdateAttendees(count int) {
	globalManager.attendeesTotal.Set(float64(count))
}

// UpdatePayments sets the paid and unpaid gauges.
func UpdatePayments(paid, unpaid int) {
	globalManager.paymentsTotal.WithLabelValues("paid").Set(float64(paid))
	globalManager.paymentsTotal.WithLabelValues("unpaid").Set(float64(unpaid))
}

// RecordMeetingCreated increments the created counter.
func RecordMeetingCreated() {
	globalManager.meetingsCreated.Inc()
}

// RecordMeetingDeleted increments the deleted counter.
func RecordMeetingDeleted() {
	globalManager.meetingsDeleted.Inc()
}

// RecordRuleRejection records a request rejected by a pairing rule.
func RecordRuleRejection(rule string) {
	globalManager.ruleRejections.WithLabelValues(rule).Inc()
}

// RecordReportRendered records a rendered PDF and its render time.
func RecordReportRendered(latencyMs float64) {
	globalManager.reportsRendered.Inc()
	globalManager.reportRenderTime.Observe(latencyMs)
}

// RecordDuplicateRequest increments the replayed idempotency key counter.
func RecordDuplicateRequest() {
	globalManager.duplicateRequests.Inc()
}

// Timer Metrics Functions.

// UpdateTimersActive sets the number of timer sessions.
func UpdateTimersActive(count int) {
	globalManager.timersActive.Set(float64(count))
}

// RecordTimerCue records a fired timer cue.
func RecordTimerCue(cue string) {
	globalManager.timerCues.WithLabelValues(cue).Inc()
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

// UpdateStreamSubscribers sets the number of connected stream clients.
func UpdateStreamSubscribers(count int) {
	globalManager.streamSubscribers.Set(float64(count))
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
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

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
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

// RecordEventDispatched records a dispatched change event.
func RecordEventDispatched(kind string) {
	globalManager.eventsDispatched.WithLabelValues(kind).Inc()
}

// Enhanced Error Metrics Functions.

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
