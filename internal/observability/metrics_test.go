package observability

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMetrics builds a full metric set on a private registry so tests
// never touch the default registry or each other.
func testMetrics(t *testing.T) *Metrics {
	t.Helper()
	return newMetrics("test", prometheus.NewRegistry())
}

func TestNewMetricsDefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics("", reg)
	require.NotNil(t, m)

	m.RecordRedisOperation("GET", time.Millisecond, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "camweave_redis_operations_total")
}

func TestInitMetricsIdempotent(t *testing.T) {
	saved := globalMetrics
	defer func() { globalMetrics = saved }()

	// With an instance already installed, InitMetrics must hand it back
	// instead of re-registering on the default registry.
	existing := newMetrics("test", prometheus.NewRegistry())
	globalMetrics = existing

	assert.Same(t, existing, InitMetrics("other_namespace"))
	assert.Same(t, existing, InitMetrics(""))
}

func TestGetMetrics(t *testing.T) {
	saved := globalMetrics
	defer func() { globalMetrics = saved }()

	globalMetrics = nil
	assert.Panics(t, func() { GetMetrics() })

	instance := newMetrics("test", prometheus.NewRegistry())
	globalMetrics = instance
	assert.Same(t, instance, GetMetrics())
}

func TestActiveMetrics(t *testing.T) {
	saved := globalMetrics
	defer func() { globalMetrics = saved }()

	globalMetrics = nil
	assert.Nil(t, ActiveMetrics())

	instance := newMetrics("test", prometheus.NewRegistry())
	globalMetrics = instance
	assert.Same(t, instance, ActiveMetrics())
}

func TestRecordHTTPRequest(t *testing.T) {
	m := testMetrics(t)

	m.RecordHTTPRequest("POST", "/quality-on-demand/v1/sessions", 201, 50*time.Millisecond, 1024)
	m.RecordHTTPRequest("POST", "/quality-on-demand/v1/sessions", 201, 30*time.Millisecond, 980)
	m.RecordHTTPRequest("GET", "/location-retrieval/v1/retrieve", 404, 5*time.Millisecond, 128)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/quality-on-demand/v1/sessions", "201")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/location-retrieval/v1/retrieve", "404")))
}

func TestRecordAdapterOperation(t *testing.T) {
	m := testMetrics(t)

	m.RecordAdapterOperation("coresim", "CreateQoSSession", 10*time.Millisecond, nil)
	m.RecordAdapterOperation("open5gs", "GetLocation", 5*time.Millisecond, errors.New("pcf unreachable"))

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.AdapterOperationsTotal.WithLabelValues("coresim", "CreateQoSSession", statusSuccess)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.AdapterOperationsTotal.WithLabelValues("open5gs", "GetLocation", statusError)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.AdapterErrorsTotal.WithLabelValues("open5gs", "GetLocation", "general")))

	// The success path must not touch the error counter.
	assert.Equal(t, float64(0),
		testutil.ToFloat64(m.AdapterErrorsTotal.WithLabelValues("coresim", "CreateQoSSession", "general")))
}

func TestRecordSubscriptionEvent(t *testing.T) {
	m := testMetrics(t)

	eventType := "org.camaraproject.device-reachability-status-subscriptions.v1.reachability-data"
	m.RecordSubscriptionEvent(eventType, "device-status")
	m.RecordSubscriptionEvent(eventType, "device-status")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.SubscriptionEventsTotal.WithLabelValues(eventType, "device-status")))
}

func TestRecordWebhookDelivery(t *testing.T) {
	m := testMetrics(t)

	tests := []struct {
		name       string
		httpStatus int
		err        error
		wantStatus string
	}{
		{"2xx counts as success", 200, nil, statusSuccess},
		{"4xx counts as error even without transport error", 400, nil, statusError},
		{"5xx with transport error", 503, errors.New("sink unavailable"), statusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.RecordWebhookDelivery(100*time.Millisecond, tt.httpStatus, tt.err)
			count := testutil.ToFloat64(
				m.WebhookDeliveryTotal.WithLabelValues(tt.wantStatus, strconv.Itoa(tt.httpStatus)))
			assert.Equal(t, float64(1), count)
		})
	}
}

func TestRecordRedisOperation(t *testing.T) {
	m := testMetrics(t)

	m.RecordRedisOperation("HGETALL", time.Millisecond, nil)
	m.RecordRedisOperation("XADD", 2*time.Millisecond, errors.New("connection refused"))

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.RedisOperationsTotal.WithLabelValues("HGETALL", statusSuccess)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.RedisOperationsTotal.WithLabelValues("XADD", statusError)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.RedisErrorsTotal.WithLabelValues("XADD", "general")))
}

func TestRecordNEFRequest(t *testing.T) {
	m := testMetrics(t)

	m.RecordNEFRequest("as-session-with-qos", "POST", 10*time.Millisecond, nil)
	m.RecordNEFRequest("monitoring-event", "DELETE", 5*time.Millisecond, errors.New("subscription not found"))

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.NEFRequestsTotal.WithLabelValues("as-session-with-qos", "POST", statusSuccess)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.NEFRequestsTotal.WithLabelValues("monitoring-event", "DELETE", statusError)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.NEFErrorsTotal.WithLabelValues("monitoring-event", "DELETE", "general")))
}

func TestRecordExpiryScan(t *testing.T) {
	m := testMetrics(t)

	// A scan that flips two sessions.
	m.RecordExpiryScan("qod_session", 20*time.Millisecond, 2, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExpiryScansTotal.WithLabelValues(statusSuccess)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ExpiredRecordsTotal.WithLabelValues("qod_session")))

	// A failed scan flips nothing.
	m.RecordExpiryScan("device_status_subscription", 5*time.Millisecond, 0, errors.New("redis down"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExpiryScansTotal.WithLabelValues(statusError)))
	assert.Equal(t, float64(0),
		testutil.ToFloat64(m.ExpiredRecordsTotal.WithLabelValues("device_status_subscription")))
}

func TestResourceCountGauges(t *testing.T) {
	m := testMetrics(t)

	m.SetSubscriptionCount(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(m.SubscriptionsTotal))

	m.SetQoDSessionCount(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.QoDSessionsActive))

	m.SetTrafficInfluenceCount(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.TrafficInfluencesActive))

	m.SetRedisConnectionsActive(10)
	assert.Equal(t, float64(10), testutil.ToFloat64(m.RedisConnectionsActive))

	// Gauges overwrite, they do not accumulate.
	m.SetQoDSessionCount(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.QoDSessionsActive))
}

func TestHTTPInFlight(t *testing.T) {
	m := testMetrics(t)

	m.HTTPInFlightInc()
	m.HTTPInFlightInc()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsInFlight))

	m.HTTPInFlightDec()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	m := newMetrics("bench", prometheus.NewRegistry())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordHTTPRequest("GET", "/quality-on-demand/v1/sessions", 200, 10*time.Millisecond, 1024)
	}
}

func BenchmarkRecordAdapterOperation(b *testing.B) {
	m := newMetrics("bench", prometheus.NewRegistry())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordAdapterOperation("coresim", "CreateQoSSession", 5*time.Millisecond, nil)
	}
}
