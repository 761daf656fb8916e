package adapter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for adapter operations.
// All adapter implementations record through these for consistent
// observability across cores.
var Metrics = struct {
	// OperationDuration tracks the duration of adapter operations in seconds.
	OperationDuration *prometheus.HistogramVec

	// OperationTotal counts adapter operations.
	OperationTotal *prometheus.CounterVec

	// OperationErrors counts adapter operation errors.
	OperationErrors *prometheus.CounterVec

	// HealthCheckStatus tracks health check state (1 = healthy, 0 = unhealthy).
	HealthCheckStatus *prometheus.GaugeVec

	// SessionCount tracks active QoD sessions per adapter.
	SessionCount *prometheus.GaugeVec

	// ProfileCacheHits counts device-profile cache hits.
	ProfileCacheHits *prometheus.CounterVec

	// ProfileCacheMisses counts device-profile cache misses.
	ProfileCacheMisses *prometheus.CounterVec
}{
	OperationDuration: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "camweave",
			Subsystem: "adapter",
			Name:      "operation_duration_seconds",
			Help:      "Duration of adapter operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"adapter", "operation", "status"},
	),

	OperationTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camweave",
			Subsystem: "adapter",
			Name:      "operations_total",
			Help:      "Total number of adapter operations",
		},
		[]string{"adapter", "operation", "status"},
	),

	OperationErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camweave",
			Subsystem: "adapter",
			Name:      "operation_errors_total",
			Help:      "Total number of adapter operation errors",
		},
		[]string{"adapter", "operation"},
	),

	HealthCheckStatus: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "camweave",
			Subsystem: "adapter",
			Name:      "health_check_status",
			Help:      "Status of adapter health check (1 = healthy, 0 = unhealthy)",
		},
		[]string{"adapter"},
	),

	SessionCount: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "camweave",
			Subsystem: "adapter",
			Name:      "qod_sessions_active",
			Help:      "Number of active QoD sessions per adapter",
		},
		[]string{"adapter"},
	),

	ProfileCacheHits: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camweave",
			Subsystem: "adapter",
			Name:      "profile_cache_hits_total",
			Help:      "Total number of device profile cache hits",
		},
		[]string{"adapter"},
	),

	ProfileCacheMisses: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camweave",
			Subsystem: "adapter",
			Name:      "profile_cache_misses_total",
			Help:      "Total number of device profile cache misses",
		},
		[]string{"adapter"},
	),
}

// ObserveOperation records metrics for an adapter operation.
//
// Example usage:
//
//	start := time.Now()
//	err := a.doOperation()
//	adapter.ObserveOperation("coresim", "CreateQoDSession", start, err)
func ObserveOperation(adapterName, operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
		Metrics.OperationErrors.WithLabelValues(adapterName, operation).Inc()
	}

	Metrics.OperationDuration.WithLabelValues(adapterName, operation, status).Observe(duration)
	Metrics.OperationTotal.WithLabelValues(adapterName, operation, status).Inc()
}

// ObserveHealthCheck records the outcome of an adapter health check.
func ObserveHealthCheck(adapterName string, err error) {
	status := float64(1)
	if err != nil {
		status = 0
	}
	Metrics.HealthCheckStatus.WithLabelValues(adapterName).Set(status)
}

// UpdateSessionCount updates the active session gauge for an adapter.
func UpdateSessionCount(adapterName string, count int) {
	Metrics.SessionCount.WithLabelValues(adapterName).Set(float64(count))
}

// RecordProfileCacheHit records a device-profile cache hit.
func RecordProfileCacheHit(adapterName string) {
	Metrics.ProfileCacheHits.WithLabelValues(adapterName).Inc()
}

// RecordProfileCacheMiss records a device-profile cache miss.
func RecordProfileCacheMiss(adapterName string) {
	Metrics.ProfileCacheMisses.WithLabelValues(adapterName).Inc()
}
