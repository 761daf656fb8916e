// Package main is the entry point for the CAMARA gateway.
// It translates CAMARA API requests (Quality on Demand, Location
// Retrieval, Device Status, SIM Swap, Traffic Influence) into 3GPP NEF
// calls against the configured network cores.
//
// The application performs the following initialization sequence:
//  1. Load configuration from config file and environment variables
//  2. Initialize structured logging with zap
//  3. Connect the session registry (Redis, or in-memory when disabled)
//  4. Register the configured network-core adapters
//  5. Start the notification pipeline and the expiry worker
//  6. Start the HTTP server with graceful shutdown support
//
// Graceful shutdown is triggered by SIGINT (Ctrl+C) or SIGTERM signals.
//
// Example usage:
//
//	# Start with default config search paths
//	./gateway
//
//	# Start with custom config file
//	./gateway --config=/etc/camweave/config.yaml
//
//	# Start with environment variable overrides
//	export CAMWEAVE_SERVER_PORT=9090
//	export CAMWEAVE_REDIS_ADDR=redis.example.com:6379
//	./gateway
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/piwi3910/camweave/internal/adapter"
	"github.com/piwi3910/camweave/internal/adapters/coresim"
	"github.com/piwi3910/camweave/internal/adapters/mock"
	"github.com/piwi3910/camweave/internal/adapters/open5gs"
	"github.com/piwi3910/camweave/internal/config"
	"github.com/piwi3910/camweave/internal/events"
	"github.com/piwi3910/camweave/internal/observability"
	"github.com/piwi3910/camweave/internal/registry"
	"github.com/piwi3910/camweave/internal/server"
	"github.com/piwi3910/camweave/internal/storage"
	"github.com/piwi3910/camweave/internal/workers"
)

// ServiceName is the name of this service.
const ServiceName = "camweave-gateway"

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", ServiceName, server.Version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic. It returns an error if any
// critical initialization or runtime error occurs.
func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("CAMARA gateway starting",
		zap.String("service", ServiceName),
		zap.String("version", server.Version),
		zap.Int("cores", len(cfg.Cores)),
	)

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(cfg.Observability.Metrics.Namespace)
	}

	store, redisClient, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("failed to close store", zap.Error(closeErr))
		}
	}()

	ctx := context.Background()

	cores, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := cores.Close(); closeErr != nil {
			logger.Warn("failed to close core registry", zap.Error(closeErr))
		}
	}()
	cores.StartHealthChecks(ctx)

	processor, err := buildProcessor(cfg, store, redisClient, logger)
	if err != nil {
		return err
	}
	if err := processor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event processor: %w", err)
	}
	defer func() {
		if stopErr := processor.Stop(); stopErr != nil {
			logger.Warn("failed to stop event processor", zap.Error(stopErr))
		}
	}()

	expiry, err := workers.NewExpiryWorker(&workers.ExpiryConfig{
		Store:     store,
		Publisher: processor,
		Logger:    logger,
		Metrics:   metrics,
		Interval:  cfg.Expiry.Interval,
	})
	if err != nil {
		return fmt.Errorf("failed to create expiry worker: %w", err)
	}
	if err := expiry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start expiry worker: %w", err)
	}
	defer func() {
		if stopErr := expiry.Stop(); stopErr != nil {
			logger.Warn("failed to stop expiry worker", zap.Error(stopErr))
		}
	}()

	srv, err := server.New(cfg, &server.Dependencies{
		Store:       store,
		Cores:       cores,
		Publisher:   processor,
		RedisClient: redisClient,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("HTTP server created",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.GinMode),
	)

	return srv.Start()
}

// buildLogger constructs the zap logger from the logging configuration.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Observability.Logging.Format == "console" || cfg.Observability.Logging.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Observability.Logging.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	if len(cfg.Observability.Logging.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.Observability.Logging.OutputPaths
	}

	return zapCfg.Build()
}

// buildStore constructs the session registry. Redis is the production
// backend; the in-memory store serves single-instance and offline
// deployments. The returned Redis client is shared with the event
// queue and the rate limiter, and is nil in memory mode.
func buildStore(cfg *config.Config, logger *zap.Logger) (storage.Store, redis.UniversalClient, error) {
	if !cfg.Redis.Enabled {
		logger.Warn("Redis disabled, using in-memory store; sessions are lost on restart")
		return storage.NewMemoryStore(), nil, nil
	}

	store := storage.NewRedisStore(&storage.RedisConfig{
		Addr:               cfg.Redis.Addr,
		Password:           cfg.Redis.Password,
		DB:                 cfg.Redis.DB,
		UseSentinel:        cfg.Redis.UseSentinel,
		SentinelAddrs:      cfg.Redis.SentinelAddrs,
		MasterName:         cfg.Redis.MasterName,
		MaxRetries:         cfg.Redis.MaxRetries,
		DialTimeout:        cfg.Redis.DialTimeout,
		ReadTimeout:        cfg.Redis.ReadTimeout,
		WriteTimeout:       cfg.Redis.WriteTimeout,
		PoolSize:           cfg.Redis.PoolSize,
		AllowInsecureSinks: cfg.Redis.AllowInsecureSinks,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis store initialized",
		zap.String("addr", cfg.Redis.Addr),
		zap.Bool("sentinel", cfg.Redis.UseSentinel),
	)

	return store, store.Client(), nil
}

// buildRegistry constructs the core registry and registers one adapter
// per configured core.
func buildRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*registry.Registry, error) {
	cores := registry.NewRegistry(logger, nil)

	for name, cc := range cfg.Cores {
		core, err := buildAdapter(cfg, cc, logger)
		if err != nil {
			if closeErr := cores.Close(); closeErr != nil {
				logger.Warn("failed to close core registry during cleanup", zap.Error(closeErr))
			}
			return nil, fmt.Errorf("failed to initialize core %s: %w", name, err)
		}

		if err := cores.Register(ctx, name, core, cc.Default); err != nil {
			if closeErr := cores.Close(); closeErr != nil {
				logger.Warn("failed to close core registry during cleanup", zap.Error(closeErr))
			}
			return nil, fmt.Errorf("failed to register core %s: %w", name, err)
		}

		logger.Info("network core registered",
			zap.String("name", name),
			zap.String("type", cc.Type),
			zap.Bool("default", cc.Default),
		)
	}

	return cores, nil
}

// buildAdapter constructs one network-core adapter from its config.
func buildAdapter(cfg *config.Config, cc config.CoreConfig, logger *zap.Logger) (adapter.Adapter, error) {
	switch cc.Type {
	case config.CoreTypeCoresim:
		return coresim.New(coresim.Config{
			QoSBaseURL:        cc.QoSBaseURL,
			MonitoringBaseURL: cc.MonitoringBaseURL,
			TrafficBaseURL:    cc.TrafficBaseURL,
			UeIdentityBaseURL: cc.UeIdentityBaseURL,
			MetricsURL:        cc.MetricsURL,
			ScsAsID:           cc.ScsAsID,
			HomeMcc:           cfg.Network.HomeMcc,
			HomeMnc:           cfg.Network.HomeMnc,
			Logger:            logger,
		})
	case config.CoreTypeOpen5gs:
		return open5gs.New(open5gs.Config{
			QoSBaseURL:        cc.QoSBaseURL,
			MonitoringBaseURL: cc.MonitoringBaseURL,
			ScsAsID:           cc.ScsAsID,
			Logger:            logger,
		})
	case config.CoreTypeMock:
		return mock.New(true), nil
	default:
		return nil, fmt.Errorf("unknown core type: %s", cc.Type)
	}
}

// buildProcessor constructs the notification pipeline. The queue is
// Redis Streams when Redis is enabled, in-process otherwise.
func buildProcessor(cfg *config.Config, store storage.Store, client redis.UniversalClient, logger *zap.Logger) (*events.Processor, error) {
	var (
		queue   events.Queue
		tracker events.DeliveryTracker
	)
	if client != nil {
		queue = events.NewRedisQueue(client, logger)
		tracker = events.NewRedisDeliveryTracker(client)
	} else {
		queue = events.NewMemoryQueue(logger)
	}

	filter := events.NewSubscriptionFilter(store, logger)

	notifier, err := events.NewWebhookNotifier(&events.NotifierConfig{
		HTTPTimeout:        cfg.Events.NotifyTimeout,
		MaxRetries:         cfg.Events.MaxRetries,
		InsecureSkipVerify: cfg.Events.InsecureSkipVerify,
	}, tracker, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	return events.NewProcessor(queue, filter, notifier, tracker, logger,
		&events.ProcessorConfig{Workers: cfg.Events.Workers}), nil
}
