package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRemoteAddr = "192.168.1.100:12345"

func testRedisClient(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func limitedRouter(t *testing.T, config *RateLimitConfig) *gin.Engine {
	t.Helper()

	rl, err := NewRateLimiter(config, zap.NewNop())
	require.NoError(t, err)

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/quality-on-demand/v1/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = testRemoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestNewRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := testRedisClient(t)

	t.Run("valid", func(t *testing.T) {
		rl, err := NewRateLimiter(&RateLimitConfig{Enabled: true, RedisClient: client}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, client, rl.client)
	})

	tests := []struct {
		name    string
		config  *RateLimitConfig
		logger  *zap.Logger
		wantErr string
	}{
		{
			name:    "nil config",
			logger:  zap.NewNop(),
			wantErr: "config cannot be nil",
		},
		{
			name:    "nil redis client",
			config:  &RateLimitConfig{Enabled: true},
			logger:  zap.NewNop(),
			wantErr: "redis client cannot be nil",
		},
		{
			name:    "nil logger",
			config:  &RateLimitConfig{Enabled: true, RedisClient: client},
			wantErr: "logger cannot be nil",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, err := NewRateLimiter(tt.config, tt.logger)
			require.Error(t, err)
			assert.Nil(t, rl)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("unreachable redis", func(t *testing.T) {
		bad := redis.NewClient(&redis.Options{Addr: "localhost:1"})
		defer func() { _ = bad.Close() }()

		_, err := NewRateLimiter(&RateLimitConfig{Enabled: true, RedisClient: bad}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis connection failed")
	})
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("disabled limiter passes everything", func(t *testing.T) {
		router := limitedRouter(t, &RateLimitConfig{
			Enabled:     false,
			RedisClient: testRedisClient(t),
		})

		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, doGet(router, "/quality-on-demand/v1/sessions").Code)
		}
	})

	t.Run("per-consumer limit sets headers", func(t *testing.T) {
		router := limitedRouter(t, &RateLimitConfig{
			Enabled:     true,
			PerConsumer: ConsumerLimitConfig{RequestsPerSecond: 2, BurstSize: 2},
			RedisClient: testRedisClient(t),
		})

		w := doGet(router, "/quality-on-demand/v1/sessions")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("exhausted bucket answers 429 with camara body", func(t *testing.T) {
		router := limitedRouter(t, &RateLimitConfig{
			Enabled:     true,
			PerConsumer: ConsumerLimitConfig{RequestsPerSecond: 1, BurstSize: 1},
			RedisClient: testRedisClient(t),
		})

		assert.Equal(t, http.StatusOK, doGet(router, "/quality-on-demand/v1/sessions").Code)

		w := doGet(router, "/quality-on-demand/v1/sessions")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("endpoint limit applies to its route only", func(t *testing.T) {
		router := limitedRouter(t, &RateLimitConfig{
			Enabled: true,
			PerEndpoint: []EndpointLimitConfig{{
				Path:              "/quality-on-demand/v1/sessions",
				Method:            http.MethodGet,
				RequestsPerSecond: 1,
				BurstSize:         1,
			}},
			RedisClient: testRedisClient(t),
		})

		assert.Equal(t, http.StatusOK, doGet(router, "/quality-on-demand/v1/sessions").Code)
		assert.Equal(t, http.StatusTooManyRequests, doGet(router, "/quality-on-demand/v1/sessions").Code)
	})

	t.Run("global limit", func(t *testing.T) {
		router := limitedRouter(t, &RateLimitConfig{
			Enabled:     true,
			Global:      GlobalLimitConfig{RequestsPerSecond: 10},
			RedisClient: testRedisClient(t),
		})

		assert.Equal(t, http.StatusOK, doGet(router, "/quality-on-demand/v1/sessions").Code)
	})
}

func TestGetEndpointLimit(t *testing.T) {
	rl, err := NewRateLimiter(&RateLimitConfig{
		Enabled: true,
		PerEndpoint: []EndpointLimitConfig{
			{Path: "/quality-on-demand/v1/sessions", Method: "POST", RequestsPerSecond: 5, BurstSize: 10},
			{Path: "/quality-on-demand/v1/sessions/:sessionId", Method: "GET", RequestsPerSecond: 10, BurstSize: 20},
		},
		RedisClient: testRedisClient(t),
	}, zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		path     string
		wantRate int
	}{
		{"create sessions route", "POST", "/quality-on-demand/v1/sessions", 5},
		{"get session route", "GET", "/quality-on-demand/v1/sessions/:sessionId", 10},
		{"unconfigured method", "DELETE", "/quality-on-demand/v1/sessions", 0},
		{"unconfigured path", "GET", "/location-retrieval/v0/retrieve", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit := rl.getEndpointLimit(tt.method, tt.path)
			if tt.wantRate == 0 {
				assert.Nil(t, limit)
				return
			}
			require.NotNil(t, limit)
			assert.Equal(t, tt.wantRate, limit.RequestsPerSecond)
		})
	}
}

func TestGetConsumerID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(consumerID interface{}, set bool) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.RemoteAddr = testRemoteAddr
		if set {
			c.Set("consumer_id", consumerID)
		}
		return c
	}

	assert.Equal(t, "consumer-123", getConsumerID(newCtx("consumer-123", true)))
	assert.Contains(t, getConsumerID(newCtx(nil, false)), "192.168.1.100")
	assert.Contains(t, getConsumerID(newCtx("", true)), "192.168.1.100")
	assert.Contains(t, getConsumerID(newCtx(123, true)), "192.168.1.100")
}

func TestGlobalLimitBurstSize(t *testing.T) {
	assert.Equal(t, 20, (&GlobalLimitConfig{RequestsPerSecond: 10}).BurstSize())
	assert.Equal(t, 0, (&GlobalLimitConfig{}).BurstSize())
}
