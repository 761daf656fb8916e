package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/camweave/internal/observability"
)

func healthyCheck(_ context.Context) error { return nil }

func failingCheck(err error) observability.HealthCheck {
	return func(_ context.Context) error { return err }
}

func TestNewHealthChecker(t *testing.T) {
	hc := observability.NewHealthChecker("v1.0.0")
	require.NotNil(t, hc)
	assert.Equal(t, "v1.0.0", hc.Version)
	assert.Equal(t, 5*time.Second, hc.Timeout)
	assert.NotNil(t, hc.HealthChecks)
	assert.NotNil(t, hc.ReadinessChecks)
}

func TestRegisterChecks(t *testing.T) {
	hc := observability.NewHealthChecker("v1.0.0")

	hc.RegisterHealthCheck("store", healthyCheck)
	hc.RegisterHealthCheck("core-coresim", healthyCheck)
	hc.RegisterReadinessCheck("store", healthyCheck)

	assert.Len(t, hc.HealthChecks, 2)
	assert.Contains(t, hc.HealthChecks, "core-coresim")
	assert.Len(t, hc.ReadinessChecks, 1)
	assert.Contains(t, hc.ReadinessChecks, "store")
}

func TestSetTimeout(t *testing.T) {
	hc := observability.NewHealthChecker("v1.0.0")
	hc.SetTimeout(10 * time.Second)
	assert.Equal(t, 10*time.Second, hc.Timeout)
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]observability.HealthCheck
		wantStatus observability.HealthStatus
	}{
		{
			name: "store and cores healthy",
			checks: map[string]observability.HealthCheck{
				"store":         healthyCheck,
				"core-coresim":  healthyCheck,
				"core-open5gs":  healthyCheck,
			},
			wantStatus: observability.StatusHealthy,
		},
		{
			name: "one core down makes the gateway unhealthy",
			checks: map[string]observability.HealthCheck{
				"store":        healthyCheck,
				"core-coresim": failingCheck(errors.New("nef not reachable")),
			},
			wantStatus: observability.StatusUnhealthy,
		},
		{
			name:       "no checks registered",
			checks:     map[string]observability.HealthCheck{},
			wantStatus: observability.StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := observability.NewHealthChecker("v1.0.0")
			for name, check := range tt.checks {
				hc.RegisterHealthCheck(name, check)
			}

			response := hc.CheckHealth(context.Background())
			require.NotNil(t, response)
			assert.Equal(t, tt.wantStatus, response.Status)
			assert.Equal(t, "v1.0.0", response.Version)
			assert.Len(t, response.Components, len(tt.checks))
		})
	}
}

func TestCheckHealthReportsComponentError(t *testing.T) {
	hc := observability.NewHealthChecker("v1.0.0")
	hc.RegisterHealthCheck("store", healthyCheck)
	hc.RegisterHealthCheck("core-coresim", failingCheck(errors.New("nef not reachable")))

	response := hc.CheckHealth(context.Background())

	assert.Equal(t, observability.StatusHealthy, response.Components["store"].Status)
	core := response.Components["core-coresim"]
	assert.Equal(t, observability.StatusUnhealthy, core.Status)
	assert.Contains(t, core.Error, "nef not reachable")
	assert.NotEmpty(t, core.Latency)
}

func TestCheckHealthTimeout(t *testing.T) {
	hc := observability.NewHealthChecker("v1.0.0")
	hc.SetTimeout(100 * time.Millisecond)

	// A core whose NEF endpoint hangs must not stall the probe.
	hc.RegisterHealthCheck("core-open5gs", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	response := hc.CheckHealth(context.Background())

	assert.Equal(t, observability.StatusUnhealthy, response.Status)
	assert.Equal(t, "check timed out", response.Components["core-open5gs"].Error)
}

func TestCheckReadiness(t *testing.T) {
	t.Run("all ready", func(t *testing.T) {
		hc := observability.NewHealthChecker("v1.0.0")
		hc.RegisterReadinessCheck("store", healthyCheck)
		hc.RegisterReadinessCheck("core-coresim", healthyCheck)

		response := hc.CheckReadiness(context.Background())
		require.NotNil(t, response)
		assert.True(t, response.Ready)
		assert.Len(t, response.Components, 2)
	})

	t.Run("any failing component blocks readiness", func(t *testing.T) {
		hc := observability.NewHealthChecker("v1.0.0")
		hc.RegisterReadinessCheck("store", healthyCheck)
		hc.RegisterReadinessCheck("core-coresim", failingCheck(errors.New("nef not reachable")))

		response := hc.CheckReadiness(context.Background())
		assert.False(t, response.Ready)
		assert.Contains(t, response.Components["core-coresim"].Error, "nef not reachable")
	})
}

func TestExecuteChecksRunsConcurrently(t *testing.T) {
	hc := observability.NewHealthChecker("v1.0.0")

	slow := func(_ context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	checks := map[string]observability.HealthCheck{
		"store":        slow,
		"core-coresim": slow,
		"core-open5gs": slow,
	}

	start := time.Now()
	components := hc.ExecuteChecks(context.Background(), checks)

	// Three 50ms checks in parallel finish well under the 150ms a
	// sequential run would take.
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Len(t, components, 3)
}

func TestExecuteChecksEmptySet(t *testing.T) {
	hc := observability.NewHealthChecker("v1.0.0")
	components := hc.ExecuteChecks(context.Background(), nil)
	require.NotNil(t, components)
	assert.Empty(t, components)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		check      observability.HealthCheck
		wantCode   int
		wantStatus observability.HealthStatus
	}{
		{
			name:       "healthy gateway answers 200",
			check:      healthyCheck,
			wantCode:   http.StatusOK,
			wantStatus: observability.StatusHealthy,
		},
		{
			name:       "unhealthy gateway answers 503",
			check:      failingCheck(errors.New("store down")),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: observability.StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := observability.NewHealthChecker("v1.0.0")
			hc.RegisterHealthCheck("store", tt.check)

			w := httptest.NewRecorder()
			hc.HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response observability.HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantStatus, response.Status)
			assert.Equal(t, "v1.0.0", response.Version)
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name      string
		check     observability.HealthCheck
		wantCode  int
		wantReady bool
	}{
		{
			name:      "ready answers 200",
			check:     healthyCheck,
			wantCode:  http.StatusOK,
			wantReady: true,
		},
		{
			name:      "not ready answers 503",
			check:     failingCheck(errors.New("store down")),
			wantCode:  http.StatusServiceUnavailable,
			wantReady: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := observability.NewHealthChecker("v1.0.0")
			hc.RegisterReadinessCheck("store", tt.check)

			w := httptest.NewRecorder()
			hc.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, w.Code)

			var response observability.ReadinessResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantReady, response.Ready)
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	observability.LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, true, response["alive"])
	assert.Contains(t, response, "timestamp")
}

func TestRedisHealthCheck(t *testing.T) {
	assert.NoError(t, observability.RedisHealthCheck(healthyCheck)(context.Background()))

	err := observability.RedisHealthCheck(func(_ context.Context) error {
		return errors.New("connection refused")
	})(context.Background())
	assert.ErrorContains(t, err, "connection refused")

	err = observability.RedisHealthCheck(nil)(context.Background())
	assert.ErrorContains(t, err, "redis ping function not provided")
}

func TestCoreHealthCheck(t *testing.T) {
	assert.NoError(t, observability.CoreHealthCheck("coresim", healthyCheck)(context.Background()))

	err := observability.CoreHealthCheck("open5gs", func(_ context.Context) error {
		return errors.New("nef endpoint unreachable")
	})(context.Background())
	assert.ErrorContains(t, err, "nef endpoint unreachable")

	err = observability.CoreHealthCheck("coresim", nil)(context.Background())
	assert.ErrorContains(t, err, "core coresim ping function not provided")
}

func TestAdapterHealthCheck(t *testing.T) {
	assert.NoError(t, observability.AdapterHealthCheck("mock", healthyCheck)(context.Background()))

	err := observability.AdapterHealthCheck("coresim", func(_ context.Context) error {
		return errors.New("circuit open")
	})(context.Background())
	assert.ErrorContains(t, err, "circuit open")

	err = observability.AdapterHealthCheck("coresim", nil)(context.Background())
	assert.ErrorContains(t, err, "adapter coresim check function not provided")
}

func TestGenericHealthCheck(t *testing.T) {
	assert.NoError(t, observability.GenericHealthCheck(healthyCheck)(context.Background()))
	assert.Error(t, observability.GenericHealthCheck(failingCheck(errors.New("boom")))(context.Background()))
}

func TestHealthStatusConstants(t *testing.T) {
	assert.Equal(t, observability.HealthStatus("healthy"), observability.StatusHealthy)
	assert.Equal(t, observability.HealthStatus("unhealthy"), observability.StatusUnhealthy)
	assert.Equal(t, observability.HealthStatus("degraded"), observability.StatusDegraded)
}

func BenchmarkCheckHealth(b *testing.B) {
	hc := observability.NewHealthChecker("v1.0.0")
	hc.RegisterHealthCheck("store", healthyCheck)
	hc.RegisterHealthCheck("core-coresim", healthyCheck)

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = hc.CheckHealth(ctx)
	}
}
