package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the extractor

var (
	// Outbound API call metrics (Wordfeud, CDF)
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordfeud_api_calls_total",
			Help: "Total number of outbound API calls",
		},
		[]string{"service", "endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wordfeud_api_call_duration_seconds",
			Help:    "Duration of outbound API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wordfeud_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)

	// Metric store operations
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordfeud_store_operations_total",
			Help: "Total number of metric store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wordfeud_store_operation_duration_seconds",
			Help:    "Duration of metric store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wordfeud_cache_hits_total",
			Help: "Total number of session cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wordfeud_cache_misses_total",
			Help: "Total number of session cache misses",
		},
	)

	LockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wordfeud_sync_lock_contention_total",
			Help: "Number of scheduled runs skipped because another run held the lock",
		},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordfeud_sync_operations_total",
			Help: "Total number of sync runs",
		},
		[]string{"status"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wordfeud_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	DatapointsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordfeud_datapoints_written_total",
			Help: "Total number of datapoints appended per metric",
		},
		[]string{"metric"},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordfeud_records_skipped_total",
			Help: "Total number of game records skipped during change-set building",
		},
		[]string{"reason"},
	)

	SeriesMissing = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordfeud_series_missing_total",
			Help: "Number of batches skipped because the target series does not exist",
		},
		[]string{"metric"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordfeud_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wordfeud_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wordfeud_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync run",
		},
	)
)

// RecordAPICall records an outbound API call metric
func RecordAPICall(service, endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(service, endpoint, status).Inc()
	APICallDuration.WithLabelValues(service, endpoint).Observe(duration)
}

// RecordStoreOperation records a metric store operation
func RecordStoreOperation(backend, operation, status string, duration float64) {
	StoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration)
}

// RecordBreakerState records the state of a circuit breaker
func RecordBreakerState(service string, state int) {
	CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordLockContention records a run skipped because the lock was held
func RecordLockContention() {
	LockContentionTotal.Inc()
}

// RecordSync records a sync run
func RecordSync(status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(status).Inc()
	SyncDuration.Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordDatapoints records appended datapoints for a metric
func RecordDatapoints(metric string, count int) {
	DatapointsWritten.WithLabelValues(metric).Add(float64(count))
}

// RecordSkippedRecord records a skipped game record
func RecordSkippedRecord(reason string) {
	RecordsSkipped.WithLabelValues(reason).Inc()
}

// RecordMissingSeries records a batch dropped for a missing series
func RecordMissingSeries(metric string) {
	SeriesMissing.WithLabelValues(metric).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
