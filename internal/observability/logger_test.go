package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLogger(t testing.TB, env string) *Logger {
	t.Helper()

	globalLogger = nil
	logger, err := InitLogger(env)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Sync() })
	return logger
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		wantErr bool
	}{
		{name: "development", env: "development"},
		{name: "test", env: "test"},
		{name: "staging", env: "staging"},
		{name: "production", env: "production"},
		{name: "unknown environment", env: "sandbox", wantErr: true},
		{name: "empty environment", env: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			globalLogger = nil

			logger, err := InitLogger(tt.env)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, logger)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, logger)
			assert.Same(t, logger, globalLogger)
			_ = logger.Sync()
		})
	}
}

func TestInitLoggerLogLevelOverride(t *testing.T) {
	globalLogger = nil
	t.Setenv("LOG_LEVEL", "warn")

	logger, err := InitLogger("production")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
	_ = logger.Sync()
}

func TestInitLoggerRejectsBadLogLevel(t *testing.T) {
	globalLogger = nil
	t.Setenv("LOG_LEVEL", "loudest")

	logger, err := InitLogger("production")
	require.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestGetLogger(t *testing.T) {
	logger := newTestLogger(t, "development")
	assert.Same(t, logger, GetLogger())
}

func TestGetLoggerPanicsWhenNotInitialized(t *testing.T) {
	globalLogger = nil
	assert.Panics(t, func() { GetLogger() })
}

func TestContextWithLogger(t *testing.T) {
	logger := newTestLogger(t, "development")

	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, LoggerFromContext(ctx))
}

func TestLoggerFromContextFallsBackToGlobal(t *testing.T) {
	logger := newTestLogger(t, "development")
	assert.Same(t, logger, LoggerFromContext(context.Background()))
}

func TestExtractContextFields(t *testing.T) {
	t.Run("no correlator", func(t *testing.T) {
		assert.Empty(t, ExtractContextFields(context.Background()))
	})

	t.Run("with correlator", func(t *testing.T) {
		ctx := ContextWithCorrelator(context.Background(), "corr-42")
		fields := ExtractContextFields(ctx)
		require.Len(t, fields, 1)
		assert.Equal(t, zap.String("x_correlator", "corr-42"), fields[0])
	})

	t.Run("empty correlator is dropped", func(t *testing.T) {
		ctx := ContextWithCorrelator(context.Background(), "")
		assert.Empty(t, ExtractContextFields(ctx))
	})
}

func TestWithContext(t *testing.T) {
	logger := newTestLogger(t, "development")

	t.Run("bare context returns same logger", func(t *testing.T) {
		assert.Same(t, logger, logger.WithContext(context.Background()))
	})

	t.Run("correlated context returns child", func(t *testing.T) {
		ctx := ContextWithCorrelator(context.Background(), "corr-7")
		child := logger.WithContext(ctx)
		require.NotNil(t, child)
		assert.NotSame(t, logger, child)
	})
}

func TestWithHelpers(t *testing.T) {
	logger := newTestLogger(t, "development")

	assert.NotSame(t, logger, logger.WithFields(zap.String("core", "coresim")))
	assert.NotSame(t, logger, logger.WithError(assert.AnError))
	assert.NotSame(t, logger, logger.WithComponent("expiry-worker"))
}

func TestDomainLogHelpers(t *testing.T) {
	logger := newTestLogger(t, "development")

	// Exercising both outcome paths of each helper. The assertions are
	// that none of them panic with realistic gateway values.
	logger.LogRequest("POST", "/quality-on-demand/v1/sessions", 201, 12.5)

	logger.LogCoreOperation("CreateQoSSession", "coresim", "qos-sub-123", nil)
	logger.LogCoreOperation("DeleteQoSSession", "open5gs", "qos-sub-456", assert.AnError)

	logger.LogEventDelivery("org.camaraproject.qod.v1.qos-status-changed", "sub-1", 1, nil)
	logger.LogEventDelivery("org.camaraproject.device-status.v1.roaming-on", "sub-2", 3, assert.AnError)

	logger.LogRedisOperation("SET", "qod:session:abc", nil)
	logger.LogRedisOperation("GET", "qod:session:def", assert.AnError)

	logger.LogNEFRequest("POST", "http://nef/3gpp-as-session-with-qos/v1/scs/subscriptions", 201, nil)
	logger.LogNEFRequest("DELETE", "http://nef/3gpp-monitoring-event/v1/scs/subscriptions/9", 500, assert.AnError)
}

func BenchmarkLoggerInfo(b *testing.B) {
	logger := newTestLogger(b, "production")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark",
			zap.String("session_id", "qos-1"),
			zap.Int("iteration", i),
		)
	}
}

func BenchmarkLogRequest(b *testing.B) {
	logger := newTestLogger(b, "production")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.LogRequest("GET", "/quality-on-demand/v1/sessions", 200, 8.2)
	}
}
