package observability

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with gateway-specific helpers.
type Logger struct {
	*zap.Logger
}

type loggerContextKey struct{}

type correlatorContextKey struct{}

// globalLogger is set by InitLogger and read by GetLogger.
var globalLogger *Logger

// InitLogger builds the global logger for the given environment.
// development and test get console encoding with colored levels,
// production and staging get JSON with ISO8601 timestamps. LOG_LEVEL
// overrides the default level when set.
func InitLogger(env string) (*Logger, error) {
	var cfg zap.Config

	switch env {
	case "development", "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "production", "staging":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid environment: %s (must be development, test, staging, or production)", env)
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := cfg.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	globalLogger = &Logger{Logger: zapLogger}
	return globalLogger, nil
}

// GetLogger returns the global logger. Panics when InitLogger has not run.
func GetLogger() *Logger {
	if globalLogger == nil {
		panic("logger not initialized - call InitLogger first")
	}
	return globalLogger
}

// ContextWithLogger stores a request-scoped logger in the context.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext returns the request-scoped logger, falling back to
// the global one.
func LoggerFromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return logger
	}
	return GetLogger()
}

// ContextWithCorrelator stores the request correlator so downstream
// NEF calls and event deliveries log under the same identifier.
func ContextWithCorrelator(ctx context.Context, correlator string) context.Context {
	return context.WithValue(ctx, correlatorContextKey{}, correlator)
}

// ExtractContextFields returns log fields derived from the context,
// currently the x-correlator when one was set.
func ExtractContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if correlator, ok := ctx.Value(correlatorContextKey{}).(string); ok && correlator != "" {
		fields = append(fields, zap.String("x_correlator", correlator))
	}
	return fields
}

// WithContext returns a logger carrying the context's fields.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if fields := ExtractContextFields(ctx); len(fields) > 0 {
		return &Logger{Logger: l.With(fields...)}
	}
	return l
}

// WithFields returns a logger with the given fields attached.
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.With(fields...)}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With(zap.Error(err))}
}

// WithComponent returns a logger tagged with a component name such as
// "expiry-worker" or "event-processor".
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With(zap.String("component", component))}
}

// Sync flushes buffered entries. Call before shutdown.
func (l *Logger) Sync() error {
	if err := l.Logger.Sync(); err != nil {
		return fmt.Errorf("failed to sync logger: %w", err)
	}
	return nil
}

// LogRequest logs one inbound CAMARA API request.
func (l *Logger) LogRequest(method, path string, statusCode int, durationMs float64) {
	l.Info("http request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusCode),
		zap.Float64("duration_ms", durationMs),
	)
}

// LogCoreOperation logs a call into a network core adapter.
func (l *Logger) LogCoreOperation(operation, core, resourceID string, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("core", core),
		zap.String("resource_id", resourceID),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		l.Error("core operation failed", fields...)
		return
	}
	l.Info("core operation completed", fields...)
}

// LogEventDelivery logs a webhook notification attempt for a
// device-status or QoD subscription.
func (l *Logger) LogEventDelivery(eventType, subscriptionID string, attempt int, err error) {
	fields := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("subscription_id", subscriptionID),
		zap.Int("attempt", attempt),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		l.Warn("event delivery failed", fields...)
		return
	}
	l.Info("event delivered", fields...)
}

// LogRedisOperation logs a store operation. Successes log at debug so
// steady-state traffic stays quiet.
func (l *Logger) LogRedisOperation(operation, key string, err error) {
	if err != nil {
		l.Error("redis operation failed",
			zap.String("operation", operation),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	l.Debug("redis operation completed",
		zap.String("operation", operation),
		zap.String("key", key),
	)
}

// LogNEFRequest logs a northbound 3GPP NEF API call.
func (l *Logger) LogNEFRequest(method, url string, statusCode int, err error) {
	if err != nil {
		l.Error("nef request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", statusCode),
			zap.Error(err),
		)
		return
	}
	l.Debug("nef request completed",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", statusCode),
	)
}
