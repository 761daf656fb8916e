package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the reported state of one checked component.
type HealthStatus string

const (
	// StatusHealthy means the component answered its check.
	StatusHealthy HealthStatus = "healthy"
	// StatusUnhealthy means the component failed its check.
	StatusUnhealthy HealthStatus = "unhealthy"
	// StatusDegraded means the component works but with reduced capacity.
	StatusDegraded HealthStatus = "degraded"
)

// HealthCheck probes one component. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// ComponentHealth is the per-component section of a health response.
type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ReadinessResponse is the /ready response body.
type ReadinessResponse struct {
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker runs registered checks for the /health and /ready
// endpoints. Health checks cover the store and every registered core;
// readiness checks cover only what must answer before traffic arrives.
type HealthChecker struct {
	mu              sync.RWMutex
	HealthChecks    map[string]HealthCheck // Exported for testing
	ReadinessChecks map[string]HealthCheck // Exported for testing
	Version         string                 // Exported for testing
	Timeout         time.Duration          // Exported for testing
}

// NewHealthChecker creates a health checker reporting the given version.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		HealthChecks:    make(map[string]HealthCheck),
		ReadinessChecks: make(map[string]HealthCheck),
		Version:         version,
		Timeout:         5 * time.Second,
	}
}

// RegisterHealthCheck adds a component to the /health probe set.
func (hc *HealthChecker) RegisterHealthCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.HealthChecks[name] = check
}

// RegisterReadinessCheck adds a component to the /ready probe set.
func (hc *HealthChecker) RegisterReadinessCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.ReadinessChecks[name] = check
}

// SetTimeout bounds how long one probe round may take in total.
func (hc *HealthChecker) SetTimeout(timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.Timeout = timeout
}

// snapshot copies a check set so probes run without holding the lock.
func (hc *HealthChecker) snapshot(set map[string]HealthCheck) (map[string]HealthCheck, time.Duration) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	checks := make(map[string]HealthCheck, len(set))
	for name, check := range set {
		checks[name] = check
	}
	return checks, hc.Timeout
}

// CheckHealth runs all health checks. The overall status is the worst
// component status: any unhealthy component makes the whole gateway
// unhealthy, a degraded one makes it degraded.
func (hc *HealthChecker) CheckHealth(ctx context.Context) *HealthResponse {
	checks, timeout := hc.snapshot(hc.HealthChecks)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := hc.ExecuteChecks(ctx, checks)

	overall := StatusHealthy
	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
		if overall == StatusUnhealthy {
			break
		}
	}

	return &HealthResponse{
		Status:     overall,
		Timestamp:  time.Now(),
		Version:    hc.Version,
		Components: components,
	}
}

// CheckReadiness runs all readiness checks. Readiness is all-or-nothing:
// every registered component must be healthy.
func (hc *HealthChecker) CheckReadiness(ctx context.Context) *ReadinessResponse {
	checks, timeout := hc.snapshot(hc.ReadinessChecks)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := hc.ExecuteChecks(ctx, checks)

	ready := true
	for _, component := range components {
		if component.Status != StatusHealthy {
			ready = false
			break
		}
	}

	return &ReadinessResponse{
		Ready:      ready,
		Timestamp:  time.Now(),
		Components: components,
	}
}

// ExecuteChecks runs a set of checks concurrently and collects their
// results. Exported for testing.
func (hc *HealthChecker) ExecuteChecks(ctx context.Context, checks map[string]HealthCheck) map[string]ComponentHealth {
	components := make(map[string]ComponentHealth, len(checks))
	if len(checks) == 0 {
		return components
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()

			start := time.Now()
			err := check(ctx)

			health := ComponentHealth{
				Status:  StatusHealthy,
				Latency: time.Since(start).String(),
			}
			if err != nil {
				health.Status = StatusUnhealthy
				if ctx.Err() != nil {
					health.Error = "check timed out"
				} else {
					health.Error = err.Error()
				}
			}

			mu.Lock()
			components[name] = health
			mu.Unlock()
		}(name, check)
	}

	wg.Wait()
	return components
}

// HealthHandler serves /health. Unhealthy answers 503 so a load
// balancer can rotate the instance out.
func (hc *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hc.CheckHealth(r.Context())

		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

// ReadinessHandler serves /ready.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := hc.CheckReadiness(r.Context())

		code := http.StatusOK
		if !readiness.Ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, readiness)
	}
}

// LivenessHandler serves /live: the process answering is the check.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"alive":     true,
			"timestamp": time.Now(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil && globalLogger != nil {
		globalLogger.WithError(err).Error("failed to encode health response")
	}
}

// RedisHealthCheck probes the Redis session registry.
func RedisHealthCheck(pingFunc func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) error {
		if pingFunc == nil {
			return fmt.Errorf("redis ping function not provided")
		}
		return pingFunc(ctx)
	}
}

// CoreHealthCheck probes one network core's exposure endpoint.
func CoreHealthCheck(name string, pingFunc func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) error {
		if pingFunc == nil {
			return fmt.Errorf("core %s ping function not provided", name)
		}
		return pingFunc(ctx)
	}
}

// AdapterHealthCheck probes a registered core adapter.
func AdapterHealthCheck(name string, checkFunc func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) error {
		if checkFunc == nil {
			return fmt.Errorf("adapter %s check function not provided", name)
		}
		return checkFunc(ctx)
	}
}

// GenericHealthCheck wraps a bare probe function.
func GenericHealthCheck(checkFunc func(ctx context.Context) error) HealthCheck {
	return checkFunc
}
