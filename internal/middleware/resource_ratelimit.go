package middleware

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
)

// APIFamily represents one of the exposed CAMARA API families.
type APIFamily string

const (
	// APIFamilyQoD represents quality-on-demand session endpoints.
	APIFamilyQoD APIFamily = "quality-on-demand"
	// APIFamilyLocation represents location retrieval endpoints.
	APIFamilyLocation APIFamily = "location-retrieval"
	// APIFamilyDeviceStatus represents device status endpoints.
	APIFamilyDeviceStatus APIFamily = "device-status"
	// APIFamilySimSwap represents SIM swap endpoints.
	APIFamilySimSwap APIFamily = "sim-swap"
	// APIFamilyTrafficInfluence represents traffic influence endpoints.
	APIFamilyTrafficInfluence APIFamily = "traffic-influence"
	// APIFamilyUnknown represents a path outside the known families.
	APIFamilyUnknown APIFamily = "unknown"
)

// Pre-compiled patterns for API family extraction. Compiled once at
// package initialization.
var apiFamilyPatterns = []struct {
	pattern *regexp.Regexp
	family  APIFamily
}{
	{regexp.MustCompile(`/quality-on-demand/`), APIFamilyQoD},
	{regexp.MustCompile(`/location-retrieval/`), APIFamilyLocation},
	{regexp.MustCompile(`/device-status/`), APIFamilyDeviceStatus},
	{regexp.MustCompile(`/device-reachability-status/`), APIFamilyDeviceStatus},
	{regexp.MustCompile(`/device-roaming-status/`), APIFamilyDeviceStatus},
	{regexp.MustCompile(`/sim-swap/`), APIFamilySimSwap},
	{regexp.MustCompile(`/traffic-influences`), APIFamilyTrafficInfluence},
}

// OperationType represents the type of operation being performed.
type OperationType string

const (
	// OperationRead represents a read operation (GET).
	OperationRead OperationType = "read"
	// OperationWrite represents a write operation (POST, PUT, PATCH).
	OperationWrite OperationType = "write"
	// OperationDelete represents a delete operation (DELETE).
	OperationDelete OperationType = "delete"
)

// FamilyRateLimitConfig contains configuration for per-API-family rate
// limiting.
type FamilyRateLimitConfig struct {
	// Enabled controls whether family rate limiting is active
	Enabled bool

	// RedisClient is the Redis client for distributed limiting
	RedisClient redis.UniversalClient

	// QoD configures limits for quality-on-demand operations
	QoD FamilyLimits

	// Location configures limits for location retrieval operations
	Location FamilyLimits

	// DeviceStatus configures limits for device status operations
	DeviceStatus FamilyLimits

	// SimSwap configures limits for SIM swap operations
	SimSwap FamilyLimits

	// TrafficInfluence configures limits for traffic influence operations
	TrafficInfluence FamilyLimits

	// DefaultLimits provides fallback limits for unmatched paths
	DefaultLimits FamilyLimits
}

// FamilyLimits defines rate limits for one API family.
type FamilyLimits struct {
	// ReadsPerMinute limits read operations per minute
	ReadsPerMinute int

	// WritesPerMinute limits write operations per minute
	WritesPerMinute int
}

// FamilyRateLimiter provides API-family-specific rate limiting. Session
// creation against the network core is far more expensive than a status
// read, so write budgets are kept separate from read budgets.
type FamilyRateLimiter struct {
	client redis.UniversalClient
	logger *zap.Logger
	config *FamilyRateLimitConfig
}

var familyRateLimitHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "camweave",
		Name:      "api_rate_limit_hits_total",
		Help:      "Total number of API family rate limit hits",
	},
	[]string{"api_family", "operation", "consumer"},
)

// familyRateLimitFailOpen tracks when rate limiting fails open due to Redis errors.
var familyRateLimitFailOpen = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "camweave",
		Name:      "api_rate_limit_fail_open_total",
		Help:      "Total number of requests allowed due to rate limit check failures (fail-open behavior)",
	},
	[]string{"api_family", "operation", "consumer"},
)

// DefaultFamilyRateLimitConfig returns sensible defaults for family rate
// limiting.
func DefaultFamilyRateLimitConfig() *FamilyRateLimitConfig {
	return &FamilyRateLimitConfig{
		Enabled: true,
		QoD: FamilyLimits{
			ReadsPerMinute:  600,
			WritesPerMinute: 60,
		},
		Location: FamilyLimits{
			ReadsPerMinute:  300,
			WritesPerMinute: 300,
		},
		DeviceStatus: FamilyLimits{
			ReadsPerMinute:  600,
			WritesPerMinute: 120,
		},
		SimSwap: FamilyLimits{
			ReadsPerMinute:  300,
			WritesPerMinute: 300,
		},
		TrafficInfluence: FamilyLimits{
			ReadsPerMinute:  300,
			WritesPerMinute: 60,
		},
		DefaultLimits: FamilyLimits{
			ReadsPerMinute:  100,
			WritesPerMinute: 20,
		},
	}
}

// NewFamilyRateLimiter creates a new per-API-family rate limiter.
func NewFamilyRateLimiter(
	config *FamilyRateLimitConfig,
	logger *zap.Logger,
) (*FamilyRateLimiter, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.RedisClient == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if err := validateFamilyRateLimitConfig(config); err != nil {
		return nil, fmt.Errorf("invalid rate limit configuration: %w", err)
	}

	warnZeroLimits(logger, "QoD", config.QoD)
	warnZeroLimits(logger, "Location", config.Location)
	warnZeroLimits(logger, "DeviceStatus", config.DeviceStatus)
	warnZeroLimits(logger, "SimSwap", config.SimSwap)
	warnZeroLimits(logger, "TrafficInfluence", config.TrafficInfluence)
	warnZeroLimits(logger, "DefaultLimits", config.DefaultLimits)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := config.RedisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &FamilyRateLimiter{
		client: config.RedisClient,
		logger: logger,
		config: config,
	}, nil
}

// validateFamilyRateLimitConfig validates rate limit configuration values.
func validateFamilyRateLimitConfig(config *FamilyRateLimitConfig) error {
	for name, limits := range map[string]FamilyLimits{
		"QoD":              config.QoD,
		"Location":         config.Location,
		"DeviceStatus":     config.DeviceStatus,
		"SimSwap":          config.SimSwap,
		"TrafficInfluence": config.TrafficInfluence,
		"DefaultLimits":    config.DefaultLimits,
	} {
		if limits.ReadsPerMinute < 0 {
			return fmt.Errorf("%s.ReadsPerMinute cannot be negative", name)
		}
		if limits.WritesPerMinute < 0 {
			return fmt.Errorf("%s.WritesPerMinute cannot be negative", name)
		}
	}
	return nil
}

// warnZeroLimits logs warnings for zero rate limit values that effectively disable limiting.
func warnZeroLimits(logger *zap.Logger, name string, limits FamilyLimits) {
	if limits.ReadsPerMinute == 0 {
		logger.Warn("rate limit effectively disabled",
			zap.String("api_family", name),
			zap.String("limit_type", "ReadsPerMinute"),
			zap.String("recommendation", "set explicit value or use Enabled=false"),
		)
	}
	if limits.WritesPerMinute == 0 {
		logger.Warn("rate limit effectively disabled",
			zap.String("api_family", name),
			zap.String("limit_type", "WritesPerMinute"),
			zap.String("recommendation", "set explicit value or use Enabled=false"),
		)
	}
}

// Middleware returns a Gin middleware for per-API-family rate limiting.
func (rl *FamilyRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		consumerID := getFamilyConsumerID(c)
		family := extractAPIFamily(c.FullPath())
		operation := extractOperation(c.Request.Method, c.FullPath())

		if !rl.checkFamilyLimit(ctx, c, consumerID, family, operation) {
			return
		}

		c.Next()
	}
}

// checkFamilyLimit checks if the request is within the family-specific rate limit.
func (rl *FamilyRateLimiter) checkFamilyLimit(
	ctx context.Context,
	c *gin.Context,
	consumerID string,
	family APIFamily,
	operation OperationType,
) bool {
	limit, window := rl.getLimits(family, operation)
	if limit == 0 {
		return true // No limit configured
	}

	key := fmt.Sprintf("rate:%s:%s:%s", consumerID, family, operation)

	allowed, remaining, err := rl.checkRedisLimit(ctx, key, limit, window)
	if err != nil {
		rl.logger.Error("family rate limit check failed",
			zap.String("key", key),
			zap.Error(err),
		)
		familyRateLimitFailOpen.WithLabelValues(string(family), string(operation), consumerID).Inc()
		// Fail open: allow request if Redis fails
		return true
	}

	// Set rate limit headers
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))

	if !allowed {
		retryAfter := int(window.Seconds())
		c.Header("Retry-After", strconv.Itoa(retryAfter))

		rl.logger.Warn("api family rate limit exceeded",
			zap.String("consumer", consumerID),
			zap.String("api_family", string(family)),
			zap.String("operation", string(operation)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("client_ip", c.ClientIP()),
		)

		familyRateLimitHits.WithLabelValues(string(family), string(operation), consumerID).Inc()

		c.JSON(http.StatusTooManyRequests, camara.Error{
			Status:  http.StatusTooManyRequests,
			Code:    camara.CodeTooManyRequests,
			Message: "Rate limit reached.",
		})
		c.Abort()
		return false
	}

	return true
}

// getLimits returns the rate limit and window for a family and operation.
func (rl *FamilyRateLimiter) getLimits(
	family APIFamily,
	operation OperationType,
) (int, time.Duration) {
	var limits FamilyLimits
	switch family {
	case APIFamilyQoD:
		limits = rl.config.QoD
	case APIFamilyLocation:
		limits = rl.config.Location
	case APIFamilyDeviceStatus:
		limits = rl.config.DeviceStatus
	case APIFamilySimSwap:
		limits = rl.config.SimSwap
	case APIFamilyTrafficInfluence:
		limits = rl.config.TrafficInfluence
	default:
		limits = rl.config.DefaultLimits
	}

	switch operation {
	case OperationWrite, OperationDelete:
		return limits.WritesPerMinute, time.Minute
	default:
		return limits.ReadsPerMinute, time.Minute
	}
}

// checkRedisLimit performs the rate limit check using Redis.
func (rl *FamilyRateLimiter) checkRedisLimit(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (bool, int, error) {
	windowSeconds := int64(window.Seconds())
	now := time.Now().Unix()

	// Lua script for sliding window rate limiting
	script := `
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local limit = tonumber(ARGV[2])
		local window = tonumber(ARGV[3])

		-- Remove old entries outside the window
		redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

		-- Count current requests in window
		local current = redis.call('ZCARD', key)

		if current < limit then
			-- Add the current request
			redis.call('ZADD', key, now, now .. ':' .. math.random())
			redis.call('EXPIRE', key, window)
			return {1, limit - current - 1}
		else
			return {0, 0}
		end
	`

	result, err := rl.client.Eval(ctx, script, []string{key}, now, limit, windowSeconds).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis eval failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 2 {
		return false, 0, fmt.Errorf("invalid redis result format")
	}

	allowed := resultSlice[0].(int64) == 1
	remaining := int(resultSlice[1].(int64))

	return allowed, remaining, nil
}

// extractAPIFamily determines the API family from the request path.
func extractAPIFamily(path string) APIFamily {
	for _, p := range apiFamilyPatterns {
		if p.pattern.MatchString(path) {
			return p.family
		}
	}
	return APIFamilyUnknown
}

// extractOperation determines the operation type from the HTTP method and
// path. CAMARA retrieval endpoints use POST, so a POST against a
// "retrieve-" or "check" path counts as a read rather than a write.
func extractOperation(method, path string) OperationType {
	switch method {
	case http.MethodGet:
		return OperationRead
	case http.MethodPost:
		if strings.Contains(path, "/retrieve") || strings.Contains(path, "/check") {
			return OperationRead
		}
		return OperationWrite
	case http.MethodPut, http.MethodPatch:
		return OperationWrite
	case http.MethodDelete:
		return OperationDelete
	default:
		return OperationRead
	}
}

// getFamilyConsumerID extracts the consumer identity for family rate limiting.
func getFamilyConsumerID(c *gin.Context) string {
	if consumerID, exists := c.Get("consumer_id"); exists {
		if id, ok := consumerID.(string); ok && id != "" {
			return id
		}
	}

	if consumerID := c.GetHeader("X-API-Consumer-ID"); consumerID != "" {
		return consumerID
	}

	// Fallback to client IP
	return strings.ReplaceAll(c.ClientIP(), ":", "_")
}
