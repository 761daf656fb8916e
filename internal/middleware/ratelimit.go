// Package middleware provides the HTTP middleware for the CAMARA gateway.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
)

// tokenBucket refills per-second and spends one token per request. All
// state lives in Redis so the limit holds across gateway replicas.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local burst = tonumber(ARGV[3])
	local window = tonumber(ARGV[4])

	local tokens_key = key .. ":tokens"
	local ts_key = key .. ":ts"

	local tokens = tonumber(redis.call('GET', tokens_key) or burst)
	local last = tonumber(redis.call('GET', ts_key) or now)

	tokens = math.min(burst, tokens + (now - last) * rate)

	if tokens >= 1 then
		tokens = tokens - 1
		redis.call('SET', tokens_key, tokens, 'EX', window * 2)
		redis.call('SET', ts_key, now, 'EX', window * 2)
		return {1, tokens, burst}
	end
	return {0, 0, burst}
`)

// RateLimitConfig configures the layered rate limits: per endpoint,
// per API consumer, and gateway-wide.
type RateLimitConfig struct {
	Enabled bool

	PerConsumer ConsumerLimitConfig
	PerEndpoint []EndpointLimitConfig
	Global      GlobalLimitConfig

	// RedisClient holds the bucket state, shared with the store.
	RedisClient redis.UniversalClient
}

// ConsumerLimitConfig limits one API consumer across all endpoints.
type ConsumerLimitConfig struct {
	RequestsPerSecond int
	BurstSize         int
}

// EndpointLimitConfig limits one route. Path is the gin route pattern,
// for example "/quality-on-demand/v1/sessions".
type EndpointLimitConfig struct {
	Path              string
	Method            string
	RequestsPerSecond int
	BurstSize         int
}

// GlobalLimitConfig limits the gateway as a whole.
type GlobalLimitConfig struct {
	RequestsPerSecond     int
	MaxConcurrentRequests int
}

// BurstSize derives the global burst as twice the sustained rate.
func (g *GlobalLimitConfig) BurstSize() int {
	if g.RequestsPerSecond == 0 {
		return 0
	}
	return g.RequestsPerSecond * 2
}

// RateLimiter enforces RateLimitConfig over Redis.
type RateLimiter struct {
	client redis.UniversalClient
	logger *zap.Logger
	config *RateLimitConfig
}

// NewRateLimiter creates a limiter and verifies the Redis connection.
func NewRateLimiter(config *RateLimitConfig, logger *zap.Logger) (*RateLimiter, error) {
	if config == nil {
		return nil, fmt.Errorf("rate limit config cannot be nil")
	}
	if config.RedisClient == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := config.RedisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RateLimiter{
		client: config.RedisClient,
		logger: logger,
		config: config,
	}, nil
}

// Middleware enforces the configured limits, narrowest first: a
// request must pass the endpoint limit, then its consumer's limit,
// then the global one.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		consumer := getConsumerID(c)

		if limit := rl.getEndpointLimit(c.Request.Method, c.FullPath()); limit != nil {
			key := fmt.Sprintf("ratelimit:endpoint:%s:%s:%s", consumer, c.Request.Method, c.FullPath())
			if !rl.allow(ctx, c, key, limit.RequestsPerSecond, limit.BurstSize) {
				return
			}
		}

		if rl.config.PerConsumer.RequestsPerSecond > 0 {
			key := "ratelimit:consumer:" + consumer
			if !rl.allow(ctx, c, key, rl.config.PerConsumer.RequestsPerSecond, rl.config.PerConsumer.BurstSize) {
				return
			}
		}

		if rl.config.Global.RequestsPerSecond > 0 {
			if !rl.allow(ctx, c, "ratelimit:global", rl.config.Global.RequestsPerSecond, rl.config.Global.BurstSize()) {
				return
			}
		}

		c.Next()
	}
}

// allow spends one token from the bucket behind key. Redis errors
// fail open.
func (rl *RateLimiter) allow(ctx context.Context, c *gin.Context, key string, rate, burst int) bool {
	now := time.Now().Unix()
	const windowSeconds = int64(1)

	result, err := tokenBucket.Run(ctx, rl.client, []string{key}, now, rate, burst, windowSeconds).Result()
	if err != nil {
		rl.logger.Error("rate limit check failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		rl.logger.Error("unexpected rate limit script result")
		return true
	}

	allowed := values[0].(int64) == 1
	remaining := values[1].(int64)
	limit := values[2].(int64)

	c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(now+windowSeconds, 10))

	if allowed {
		return true
	}

	c.Header("Retry-After", strconv.FormatInt(windowSeconds, 10))
	rl.logger.Warn("rate limit exceeded",
		zap.String("key", key),
		zap.String("consumer", getConsumerID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("client_ip", c.ClientIP()),
	)

	c.AbortWithStatusJSON(http.StatusTooManyRequests, camara.Error{
		Status:  http.StatusTooManyRequests,
		Code:    camara.CodeTooManyRequests,
		Message: "Rate limit reached.",
	})
	return false
}

// getEndpointLimit finds the configured limit for a route, if any.
func (rl *RateLimiter) getEndpointLimit(method, path string) *EndpointLimitConfig {
	for i := range rl.config.PerEndpoint {
		limit := &rl.config.PerEndpoint[i]
		if limit.Method == method && limit.Path == path {
			return limit
		}
	}
	return nil
}

// getConsumerID identifies the API consumer: the authenticated
// consumer when auth middleware set one, otherwise the client IP.
func getConsumerID(c *gin.Context) string {
	if v, exists := c.Get("consumer_id"); exists {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return c.ClientIP()
}
