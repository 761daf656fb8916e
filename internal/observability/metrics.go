package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Metric status labels.
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the CAMARA gateway.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Adapter metrics
	AdapterOperationsTotal   *prometheus.CounterVec
	AdapterOperationDuration *prometheus.HistogramVec
	AdapterErrorsTotal       *prometheus.CounterVec

	// Subscription metrics
	SubscriptionsTotal      prometheus.Gauge
	SubscriptionEventsTotal *prometheus.CounterVec
	WebhookDeliveryDuration *prometheus.HistogramVec
	WebhookDeliveryTotal    *prometheus.CounterVec

	// Redis metrics
	RedisOperationsTotal   *prometheus.CounterVec
	RedisOperationDuration *prometheus.HistogramVec
	RedisConnectionsActive prometheus.Gauge
	RedisErrorsTotal       *prometheus.CounterVec

	// NEF metrics
	NEFRequestsTotal   *prometheus.CounterVec
	NEFRequestDuration *prometheus.HistogramVec
	NEFErrorsTotal     *prometheus.CounterVec

	// Expiry worker metrics
	ExpiryScansTotal     *prometheus.CounterVec
	ExpiryScanDuration   *prometheus.HistogramVec
	ExpiredRecordsTotal  *prometheus.CounterVec
	QoDSessionsActive    prometheus.Gauge
	TrafficInfluencesActive prometheus.Gauge
}

var (
	// globalMetrics is the singleton metrics instance.
	globalMetrics *Metrics
)

// InitMetrics initializes and registers all Prometheus metrics on the
// default registry. Returns the existing metrics instance if already
// initialized (idempotent).
func InitMetrics(namespace string) *Metrics {
	// Return existing instance if already initialized
	if globalMetrics != nil {
		return globalMetrics
	}

	globalMetrics = newMetrics(namespace, prometheus.DefaultRegisterer)
	return globalMetrics
}

// newMetrics builds the full metric set against the given registerer.
func newMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "camweave"
	}

	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		HTTPResponseSizeBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Adapter metrics
		AdapterOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "core_operations_total",
				Help:      "Total number of network core adapter operations",
			},
			[]string{"adapter", "operation", "status"},
		),

		AdapterOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "core_operation_duration_seconds",
				Help:      "Network core adapter operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"adapter", "operation"},
		),

		AdapterErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "core_errors_total",
				Help:      "Total number of network core adapter errors",
			},
			[]string{"adapter", "operation", "error_type"},
		),

		// Subscription metrics
		SubscriptionsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "device_status_subscriptions_total",
				Help:      "Current number of active device status subscriptions",
			},
		),

		SubscriptionEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_events_total",
				Help:      "Total number of subscription events generated",
			},
			[]string{"event_type", "api_family"},
		),

		WebhookDeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_delivery_duration_seconds",
				Help:      "Webhook delivery latency in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),

		WebhookDeliveryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_delivery_total",
				Help:      "Total number of webhook delivery attempts",
			},
			[]string{"status", "http_status"},
		),

		// Redis metrics
		RedisOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redis_operations_total",
				Help:      "Total number of Redis operations",
			},
			[]string{"operation", "status"},
		),

		RedisOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redis_operation_duration_seconds",
				Help:      "Redis operation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
			},
			[]string{"operation"},
		),

		RedisConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "redis_connections_active",
				Help:      "Number of active Redis connections",
			},
		),

		RedisErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redis_errors_total",
				Help:      "Total number of Redis errors",
			},
			[]string{"operation", "error_type"},
		),

		// NEF metrics
		NEFRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nef_requests_total",
				Help:      "Total number of northbound NEF API requests",
			},
			[]string{"api", "method", "status"},
		),

		NEFRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "nef_request_duration_seconds",
				Help:      "NEF API request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"api", "method"},
		),

		NEFErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nef_errors_total",
				Help:      "Total number of NEF API errors",
			},
			[]string{"api", "method", "error_type"},
		),

		// Expiry worker metrics
		ExpiryScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expiry_scans_total",
				Help:      "Total number of expiry worker scans",
			},
			[]string{"status"},
		),

		ExpiryScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "expiry_scan_duration_seconds",
				Help:      "Expiry worker scan duration in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 5},
			},
			[]string{"record_type"},
		),

		ExpiredRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expired_records_total",
				Help:      "Total number of records flipped by the expiry worker",
			},
			[]string{"record_type"},
		),

		QoDSessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "qod_sessions_total",
				Help:      "Current number of stored QoD sessions",
			},
		),

		TrafficInfluencesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "traffic_influences_total",
				Help:      "Current number of stored traffic influence resources",
			},
		),
	}
}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		panic("metrics not initialized - call InitMetrics first")
	}
	return globalMetrics
}

// ActiveMetrics returns the global metrics instance, or nil when metrics
// are disabled. Callers on hot paths use this instead of GetMetrics so a
// metrics-less deployment does not panic.
func ActiveMetrics() *Metrics {
	return globalMetrics
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, responseSize int) {
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordAdapterOperation records adapter operation metrics.
func (m *Metrics) RecordAdapterOperation(adapter, operation string, duration time.Duration, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
		m.AdapterErrorsTotal.WithLabelValues(adapter, operation, "general").Inc()
	}
	m.AdapterOperationsTotal.WithLabelValues(adapter, operation, status).Inc()
	m.AdapterOperationDuration.WithLabelValues(adapter, operation).Observe(duration.Seconds())
}

// RecordSubscriptionEvent records subscription event metrics.
func (m *Metrics) RecordSubscriptionEvent(eventType, apiFamily string) {
	m.SubscriptionEventsTotal.WithLabelValues(eventType, apiFamily).Inc()
}

// RecordWebhookDelivery records webhook delivery metrics.
func (m *Metrics) RecordWebhookDelivery(duration time.Duration, httpStatusCode int, err error) {
	status := statusSuccess
	httpStatus := strconv.Itoa(httpStatusCode)

	if err != nil || httpStatusCode >= 400 {
		status = statusError
	}

	m.WebhookDeliveryDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.WebhookDeliveryTotal.WithLabelValues(status, httpStatus).Inc()
}

// RecordRedisOperation records Redis operation metrics.
func (m *Metrics) RecordRedisOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.RedisErrorsTotal.WithLabelValues(operation, "general").Inc()
	}
	m.RedisOperationsTotal.WithLabelValues(operation, status).Inc()
	m.RedisOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordNEFRequest records northbound NEF API metrics.
func (m *Metrics) RecordNEFRequest(api, method string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.NEFErrorsTotal.WithLabelValues(api, method, "general").Inc()
	}
	m.NEFRequestsTotal.WithLabelValues(api, method, status).Inc()
	m.NEFRequestDuration.WithLabelValues(api, method).Observe(duration.Seconds())
}

// RecordExpiryScan records one expiry worker pass.
func (m *Metrics) RecordExpiryScan(recordType string, duration time.Duration, expired int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ExpiryScansTotal.WithLabelValues(status).Inc()
	m.ExpiryScanDuration.WithLabelValues(recordType).Observe(duration.Seconds())
	if expired > 0 {
		m.ExpiredRecordsTotal.WithLabelValues(recordType).Add(float64(expired))
	}
}

// SetSubscriptionCount sets the current subscription count.
func (m *Metrics) SetSubscriptionCount(count int) {
	m.SubscriptionsTotal.Set(float64(count))
}

// SetQoDSessionCount sets the current stored session count.
func (m *Metrics) SetQoDSessionCount(count int) {
	m.QoDSessionsActive.Set(float64(count))
}

// SetTrafficInfluenceCount sets the current stored influence count.
func (m *Metrics) SetTrafficInfluenceCount(count int) {
	m.TrafficInfluencesActive.Set(float64(count))
}

// SetRedisConnectionsActive sets the number of active Redis connections.
func (m *Metrics) SetRedisConnectionsActive(count int) {
	m.RedisConnectionsActive.Set(float64(count))
}

// HTTPInFlightInc increments the in-flight HTTP request counter.
func (m *Metrics) HTTPInFlightInc() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTPInFlightDec decrements the in-flight HTTP request counter.
func (m *Metrics) HTTPInFlightDec() {
	m.HTTPRequestsInFlight.Dec()
}
