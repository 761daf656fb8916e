// Package server provides the HTTP server for the CAMARA gateway.
// It wires the middleware chain, the CAMARA API route groups, and the
// health and metrics endpoints, and owns the server lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/config"
	"github.com/piwi3910/camweave/internal/handlers"
	"github.com/piwi3910/camweave/internal/middleware"
	"github.com/piwi3910/camweave/internal/observability"
	"github.com/piwi3910/camweave/internal/registry"
	"github.com/piwi3910/camweave/internal/storage"
)

// Version is the gateway version reported by the health endpoint.
// Overridden at build time via ldflags.
var Version = "dev"

// Dependencies carries the wired application components the server
// exposes over HTTP.
type Dependencies struct {
	// Store persists sessions, subscriptions, and influence resources.
	Store storage.Store

	// Cores is the registry of configured network-core adapters.
	Cores *registry.Registry

	// Publisher feeds lifecycle events into the notification pipeline.
	// May be nil when notifications are disabled.
	Publisher handlers.Publisher

	// RedisClient backs distributed rate limiting. May be nil; rate
	// limiting is then skipped.
	RedisClient redis.UniversalClient

	// Metrics collects Prometheus metrics. May be nil.
	Metrics *observability.Metrics

	// Logger is the structured logger.
	Logger *zap.Logger
}

// Server is the gateway HTTP server.
type Server struct {
	config       *config.Config
	deps         *Dependencies
	logger       *zap.Logger
	router       *gin.Engine
	httpServer   *http.Server
	healthCheck  *observability.HealthChecker
	validator    *middleware.OpenAPIValidator
	shutdownOnce sync.Once
}

// New creates a configured server. The configuration must already be
// validated.
func New(cfg *config.Config, deps *Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if deps == nil {
		return nil, fmt.Errorf("dependencies cannot be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if deps.Cores == nil {
		return nil, fmt.Errorf("core registry cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	gin.SetMode(cfg.Server.GinMode)

	s := &Server{
		config:      cfg,
		deps:        deps,
		logger:      deps.Logger,
		router:      gin.New(),
		healthCheck: observability.NewHealthChecker(Version),
	}

	if err := s.setupMiddleware(); err != nil {
		return nil, fmt.Errorf("failed to set up middleware: %w", err)
	}
	s.setupHealthChecks()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s, nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupMiddleware installs the middleware chain. Order matters:
// recovery first so panics in later middleware are caught, validation
// last so rejected requests are still logged and counted.
func (s *Server) setupMiddleware() error {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.Correlator())
	s.router.Use(s.requestLogger())

	if s.deps.Metrics != nil {
		s.router.Use(s.metricsMiddleware())
	}

	if s.config.Security.SecurityHeadersEnabled {
		s.router.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()))
	}

	if s.config.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}

	if s.config.Security.RateLimitEnabled && s.deps.RedisClient != nil {
		limiter, err := middleware.NewRateLimiter(&middleware.RateLimitConfig{
			Enabled: true,
			PerConsumer: middleware.ConsumerLimitConfig{
				RequestsPerSecond: s.config.Security.RateLimitRequests,
				BurstSize:         s.config.Security.RateLimitBurst,
			},
			RedisClient: s.deps.RedisClient,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
		s.router.Use(limiter.Middleware())

		familyLimiter, err := middleware.NewFamilyRateLimiter(
			familyRateLimitConfig(s.deps.RedisClient), s.logger)
		if err != nil {
			return fmt.Errorf("failed to create family rate limiter: %w", err)
		}
		s.router.Use(familyLimiter.Middleware())
	}

	if s.config.Validation.Enabled {
		validator, err := middleware.NewOpenAPIValidator(&middleware.ValidationConfig{
			SpecPath:         s.config.Validation.SpecPath,
			ValidateRequest:  true,
			ValidateResponse: s.config.Validation.ValidateResponse,
			Logger:           s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create OpenAPI validator: %w", err)
		}
		s.validator = validator
		s.router.Use(validator.Middleware())
	}

	return nil
}

// familyRateLimitConfig applies the default per-family limits on the
// shared Redis client.
func familyRateLimitConfig(client redis.UniversalClient) *middleware.FamilyRateLimitConfig {
	cfg := middleware.DefaultFamilyRateLimitConfig()
	cfg.RedisClient = client
	return cfg
}

// requestLogger logs each request with its correlator, matching the
// access-log shape the rest of the gateway emits.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// Health probes are noisy and uninteresting
		if path == "/health" || path == "/ready" || path == "/live" {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("x_correlator", middleware.CorrelatorFrom(c)),
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			s.logger.Error("request completed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			s.logger.Warn("request completed", fields...)
		default:
			s.logger.Info("request completed", fields...)
		}
	}
}

// metricsMiddleware records per-request Prometheus metrics. The route
// template is used as the path label to bound cardinality.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.deps.Metrics.HTTPInFlightInc()

		c.Next()

		s.deps.Metrics.HTTPInFlightDec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.deps.Metrics.RecordHTTPRequest(
			c.Request.Method, path, c.Writer.Status(),
			time.Since(start), c.Writer.Size())
	}
}

// corsMiddleware handles cross-origin requests per the security config.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowedOrigins := s.config.Security.AllowedOrigins
	methods := strings.Join(s.config.Security.AllowedMethods, ", ")
	headers := strings.Join(s.config.Security.AllowedHeaders, ", ")
	if headers == "" {
		headers = "Content-Type, Authorization, x-correlator"
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origin, allowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
			c.Header("Access-Control-Expose-Headers", "x-correlator")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// setupHealthChecks registers liveness and readiness checks for the
// store and every configured core.
func (s *Server) setupHealthChecks() {
	s.healthCheck.RegisterHealthCheck("store", observability.GenericHealthCheck(
		func(ctx context.Context) error {
			return s.deps.Store.Ping(ctx)
		}))
	s.healthCheck.RegisterReadinessCheck("store", observability.GenericHealthCheck(
		func(ctx context.Context) error {
			return s.deps.Store.Ping(ctx)
		}))

	for _, name := range s.deps.Cores.Names() {
		core := s.deps.Cores.Get(name)
		if core == nil {
			continue
		}
		s.healthCheck.RegisterHealthCheck("core:"+name,
			observability.AdapterHealthCheck(name, core.Health))
	}
}

// Start runs the server until a shutdown signal or a fatal server
// error. It blocks.
func (s *Server) Start() error {
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting HTTP server",
			zap.String("addr", s.httpServer.Addr),
			zap.Bool("tls", s.config.TLS.Enabled))

		var err error
		if s.config.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the HTTP server, draining in-flight
// requests up to the configured shutdown timeout.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down HTTP server",
			zap.Duration("timeout", s.config.Server.ShutdownTimeout))

		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
			if closeErr := s.httpServer.Close(); closeErr != nil {
				s.logger.Error("forced close failed", zap.Error(closeErr))
			}
		}
	})
	return err
}
