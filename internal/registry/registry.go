// Package registry manages the set of configured network-core adapters and
// their lifecycle. Inbound requests select a core by name through the
// `core` query parameter; absent a selection, the default core answers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/adapter"
)

// ErrUnknownCore signals a core selector that matches no registered
// adapter. The error mapper renders it as 503 SERVICE_UNAVAILABLE.
var ErrUnknownCore = errors.New("unknown network core")

// CoreMetadata describes a registered core adapter.
type CoreMetadata struct {
	// Name is the selector value callers pass in the core query parameter.
	Name string

	// Type is the adapter type (e.g. "coresim", "open5gs", "mock").
	Type string

	// Default indicates this core answers when no selector is supplied.
	Default bool

	// Capabilities lists the features this core supports.
	Capabilities []adapter.Capability

	// RegisteredAt is when the core was registered.
	RegisteredAt time.Time

	// LastHealthCheck is the last time health was checked.
	LastHealthCheck time.Time

	// Healthy indicates the core passed the last health check.
	Healthy bool

	// HealthError contains the last health check error if any.
	HealthError error
}

// Registry is a thread-safe name-to-adapter table with background health
// monitoring.
type Registry struct {
	mu          sync.RWMutex
	cores       map[string]adapter.Adapter
	meta        map[string]*CoreMetadata
	defaultCore string
	logger      *zap.Logger

	healthCheckInterval time.Duration
	healthCheckTimeout  time.Duration
	stopHealthCheck     chan struct{}
	healthCheckWg       sync.WaitGroup
}

// Config contains configuration for the registry.
type Config struct {
	// HealthCheckInterval is how often to perform health checks.
	// Default: 30 seconds.
	HealthCheckInterval time.Duration

	// HealthCheckTimeout is the timeout for each health check.
	// Default: 5 seconds.
	HealthCheckTimeout time.Duration
}

// NewRegistry creates an empty core registry.
func NewRegistry(logger *zap.Logger, config *Config) *Registry {
	if config == nil {
		config = &Config{}
	}
	if config.HealthCheckInterval == 0 {
		config.HealthCheckInterval = 30 * time.Second
	}
	if config.HealthCheckTimeout == 0 {
		config.HealthCheckTimeout = 5 * time.Second
	}

	return &Registry{
		cores:               make(map[string]adapter.Adapter),
		meta:                make(map[string]*CoreMetadata),
		logger:              logger,
		healthCheckInterval: config.HealthCheckInterval,
		healthCheckTimeout:  config.HealthCheckTimeout,
		stopHealthCheck:     make(chan struct{}),
	}
}

// Register adds a core adapter under the given selector name.
// Returns an error if the name is already taken.
func (r *Registry) Register(ctx context.Context, name string, core adapter.Adapter, isDefault bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cores[name]; exists {
		return fmt.Errorf("core %s already registered", name)
	}

	healthy := true
	var healthErr error
	healthCtx, cancel := context.WithTimeout(ctx, r.healthCheckTimeout)
	defer cancel()

	if err := core.Health(healthCtx); err != nil {
		healthy = false
		healthErr = err
		r.logger.Warn("core failed initial health check",
			zap.String("core", name),
			zap.Error(err),
		)
	}

	r.cores[name] = core
	r.meta[name] = &CoreMetadata{
		Name:            name,
		Type:            core.Name(),
		Default:         isDefault,
		Capabilities:    core.Capabilities(),
		RegisteredAt:    time.Now(),
		LastHealthCheck: time.Now(),
		Healthy:         healthy,
		HealthError:     healthErr,
	}
	if isDefault {
		r.defaultCore = name
	}

	r.logger.Info("core registered",
		zap.String("core", name),
		zap.String("type", core.Name()),
		zap.Bool("default", isDefault),
		zap.Bool("healthy", healthy),
	)
	return nil
}

// Select resolves a core selector. An empty selector picks the default
// core; a selector with no match returns ErrUnknownCore.
func (r *Registry) Select(name string) (adapter.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultCore
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no default core configured", ErrUnknownCore)
	}
	core, ok := r.cores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCore, name)
	}
	return core, nil
}

// DefaultName returns the selector name of the default core, or the empty
// string when none is configured.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultCore
}

// Get retrieves a core by name. Returns nil if not found.
func (r *Registry) Get(name string) adapter.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cores[name]
}

// GetMetadata retrieves metadata for a core. Returns nil if not found.
func (r *Registry) GetMetadata(name string) *CoreMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.meta[name]
}

// ListMetadata returns metadata for all registered cores.
func (r *Registry) ListMetadata() []*CoreMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]*CoreMetadata, 0, len(r.meta))
	for _, m := range r.meta {
		metadata = append(metadata, m)
	}
	return metadata
}

// Names returns the selector names of all registered cores.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.cores))
	for name := range r.cores {
		names = append(names, name)
	}
	return names
}

// StartHealthChecks starts background health checking for all cores.
func (r *Registry) StartHealthChecks(ctx context.Context) {
	r.healthCheckWg.Add(1)
	go r.healthCheckLoop(ctx)

	r.logger.Info("core health checks started",
		zap.Duration("interval", r.healthCheckInterval),
		zap.Duration("timeout", r.healthCheckTimeout),
	)
}

// StopHealthChecks stops background health checking.
func (r *Registry) StopHealthChecks() {
	select {
	case <-r.stopHealthCheck:
		return
	default:
		close(r.stopHealthCheck)
	}
	r.healthCheckWg.Wait()
}

func (r *Registry) healthCheckLoop(ctx context.Context) {
	defer r.healthCheckWg.Done()

	ticker := time.NewTicker(r.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopHealthCheck:
			return
		case <-ticker.C:
			r.performHealthChecks(ctx)
		}
	}
}

func (r *Registry) performHealthChecks(ctx context.Context) {
	r.mu.RLock()
	cores := make(map[string]adapter.Adapter, len(r.cores))
	for name, c := range r.cores {
		cores[name] = c
	}
	r.mu.RUnlock()

	for name, core := range cores {
		r.checkCoreHealth(ctx, name, core)
	}
}

func (r *Registry) checkCoreHealth(ctx context.Context, name string, core adapter.Adapter) {
	healthCtx, cancel := context.WithTimeout(ctx, r.healthCheckTimeout)
	defer cancel()

	err := core.Health(healthCtx)
	healthy := err == nil

	r.mu.Lock()
	meta := r.meta[name]
	if meta != nil {
		previouslyHealthy := meta.Healthy
		meta.Healthy = healthy
		meta.HealthError = err
		meta.LastHealthCheck = time.Now()

		if previouslyHealthy != healthy {
			if healthy {
				r.logger.Info("core recovered", zap.String("core", name))
			} else {
				r.logger.Warn("core unhealthy",
					zap.String("core", name),
					zap.Error(err),
				)
			}
		}
	}
	r.mu.Unlock()
}

// Close closes all registered cores and stops health checks.
func (r *Registry) Close() error {
	r.StopHealthChecks()

	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for name, core := range r.cores {
		if err := core.Close(); err != nil {
			r.logger.Error("error closing core",
				zap.String("core", name),
				zap.Error(err),
			)
			lastErr = err
		}
	}

	r.cores = make(map[string]adapter.Adapter)
	r.meta = make(map[string]*CoreMetadata)
	r.defaultCore = ""

	return lastErr
}
