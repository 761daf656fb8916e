package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, registered at package load. Deliveries are labeled
// by event type rather than subscription so cardinality stays bounded
// regardless of how many consumers subscribe.
var (
	eventsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camweave",
			Subsystem: "events",
			Name:      "generated_total",
			Help:      "Events generated, by type and API family",
		},
		[]string{"event_type", "api_family"},
	)

	eventsQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camweave",
			Subsystem: "events",
			Name:      "queued_total",
			Help:      "Events pushed to the queue, by outcome",
		},
		[]string{"status"},
	)

	eventsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "camweave",
			Subsystem: "events",
			Name:      "queue_depth",
			Help:      "Events currently waiting in the queue",
		},
	)

	subscriptionsMatched = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "camweave",
			Subsystem: "events",
			Name:      "subscriptions_matched",
			Help:      "Subscriptions matched per event",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"event_type"},
	)

	notificationsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camweave",
			Subsystem: "notifications",
			Name:      "delivered_total",
			Help:      "Webhook deliveries, by outcome and event type",
		},
		[]string{"status", "event_type"},
	)

	notificationDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "camweave",
			Subsystem: "notifications",
			Name:      "delivery_duration_seconds",
			Help:      "End-to-end delivery duration including retries",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"status", "event_type"},
	)

	notificationAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "camweave",
			Subsystem: "notifications",
			Name:      "attempts",
			Help:      "Attempts used per delivery",
			Buckets:   []float64{1, 2, 3, 4, 5, 10},
		},
		[]string{"status", "event_type"},
	)

	sinkResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "camweave",
			Subsystem: "notifications",
			Name:      "sink_response_time_milliseconds",
			Help:      "Consumer sink response time per attempt",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2000, 5000},
		},
		[]string{"event_type", "http_status"},
	)

	sinkCircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "camweave",
			Subsystem: "notifications",
			Name:      "circuit_breaker_state",
			Help:      "Per-sink breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"sink"},
	)

	notificationWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "camweave",
			Subsystem: "notifications",
			Name:      "workers_active",
			Help:      "Notification workers currently running",
		},
	)

	notificationFailedCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "camweave",
			Subsystem: "notifications",
			Name:      "failed_current",
			Help:      "Deliveries whose retries are exhausted",
		},
	)
)

// RecordEventGenerated counts one generated event.
func RecordEventGenerated(eventType, apiFamily string) {
	eventsGeneratedTotal.WithLabelValues(eventType, apiFamily).Inc()
}

// RecordEventQueued counts one queue push with its outcome.
func RecordEventQueued(status string) {
	eventsQueuedTotal.WithLabelValues(status).Inc()
}

// RecordQueueDepth sets the current queue depth.
func RecordQueueDepth(depth float64) {
	eventsQueueDepth.Set(depth)
}

// RecordSubscriptionsMatched observes how many subscriptions one event
// fanned out to.
func RecordSubscriptionsMatched(eventType string, count int) {
	subscriptionsMatched.WithLabelValues(eventType).Observe(float64(count))
}

// RecordNotificationDelivered records a finished delivery: its outcome,
// total duration in seconds, and attempts used.
func RecordNotificationDelivered(status, eventType string, duration float64, attempts int) {
	notificationsDeliveredTotal.WithLabelValues(status, eventType).Inc()
	notificationDeliveryDuration.WithLabelValues(status, eventType).Observe(duration)
	notificationAttempts.WithLabelValues(status, eventType).Observe(float64(attempts))
}

// RecordSinkResponseTime observes one attempt's sink response time.
func RecordSinkResponseTime(eventType, httpStatus string, responseTimeMs float64) {
	sinkResponseTime.WithLabelValues(eventType, httpStatus).Observe(responseTimeMs)
}

// RecordCircuitBreakerState sets a sink's breaker state gauge.
func RecordCircuitBreakerState(sink string, state float64) {
	sinkCircuitBreakerState.WithLabelValues(sink).Set(state)
}

// RecordNotificationWorkersActive sets the running worker count.
func RecordNotificationWorkersActive(count int) {
	notificationWorkersActive.Set(float64(count))
}

// RecordFailedDeliveries sets the dead-letter gauge.
func RecordFailedDeliveries(count int) {
	notificationFailedCurrent.Set(float64(count))
}
