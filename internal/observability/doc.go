// Package observability provides comprehensive observability tools for the CAMARA gateway.
// It includes structured logging with zap, Prometheus metrics, and health/readiness checks.
//
// # Logging
//
// Initialize the logger once at application startup:
//
//	logger, err := observability.InitLogger("production")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Use structured logging throughout the application:
//
//	logger.Info("creating qod session",
//	    zap.String("sessionID", sessionID),
//	    zap.String("qosProfile", profile),
//	)
//
// Use context-aware logging:
//
//	logger := observability.LoggerFromContext(ctx)
//	logger.Info("operation completed")
//
// # Metrics
//
// Initialize metrics once at application startup:
//
//	metrics := observability.InitMetrics("camweave")
//
// Record HTTP request metrics:
//
//	metrics.RecordHTTPRequest("POST", "/quality-on-demand/v1/sessions", 201, duration, responseSize)
//
// Record network core operations:
//
//	start := time.Now()
//	profile, err := core.GetDeviceProfile(ctx, device)
//	metrics.RecordAdapterOperation("coresim", "GetDeviceProfile", time.Since(start), err)
//
// Track subscription counts:
//
//	metrics.SetSubscriptionCount(len(subscriptions))
//
// # Health Checks
//
// Create a health checker with registered checks:
//
//	healthChecker := observability.NewHealthChecker("v1.0.0")
//
//	// Register Redis health check
//	healthChecker.RegisterReadinessCheck("redis", observability.RedisHealthCheck(func(ctx context.Context) error {
//	    return store.Ping(ctx)
//	}))
//
//	// Register a network core health check
//	healthChecker.RegisterHealthCheck("coresim", observability.CoreHealthCheck("coresim", func(ctx context.Context) error {
//	    return core.Health(ctx)
//	}))
//
// Expose health endpoints:
//
//	http.HandleFunc("/health", healthChecker.HealthHandler())
//	http.HandleFunc("/ready", healthChecker.ReadinessHandler())
//	http.HandleFunc("/live", observability.LivenessHandler())
package observability
