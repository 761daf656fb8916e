// Package config provides configuration management for the CAMARA gateway.
// It loads configuration from YAML files and environment variables using
// Viper, with validation before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Core adapter types.
const (
	CoreTypeCoresim = "coresim"
	CoreTypeOpen5gs = "open5gs"
	CoreTypeMock    = "mock"
)

// Config represents the complete configuration for the gateway.
//
// Configuration can be loaded from:
//   - YAML file (config/config.yaml)
//   - Environment variables (prefixed with CAMWEAVE_)
//
// Example:
//
//	cfg, err := config.Load("config/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Server        ServerConfig          `mapstructure:"server"`
	Redis         RedisConfig           `mapstructure:"redis"`
	Cores         map[string]CoreConfig `mapstructure:"cores"`
	Network       NetworkConfig         `mapstructure:"network"`
	SimSwap       SimSwapConfig         `mapstructure:"sim_swap"`
	Events        EventsConfig          `mapstructure:"events"`
	Expiry        ExpiryConfig          `mapstructure:"expiry"`
	TLS           TLSConfig             `mapstructure:"tls"`
	Observability ObservabilityConfig   `mapstructure:"observability"`
	Security      SecurityConfig        `mapstructure:"security"`
	Validation    ValidationConfig      `mapstructure:"validation"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the network interface to bind to (e.g., "0.0.0.0", "localhost")
	Host string `mapstructure:"host"`

	// Port is the HTTP server port (default: 8080)
	Port int `mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request when keep-alives are enabled
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes is the maximum size of request headers
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`

	// GinMode sets the Gin framework mode ("debug", "release", "test")
	GinMode string `mapstructure:"gin_mode"`
}

// RedisConfig contains Redis client configuration. Redis backs the session
// registry, the notification queue, and distributed rate limiting.
type RedisConfig struct {
	// Enabled selects the Redis store; disabled falls back to the
	// in-memory store for offline deployments.
	Enabled bool `mapstructure:"enabled"`

	// Addr is the Redis server address (host:port) for standalone mode.
	Addr string `mapstructure:"addr"`

	// UseSentinel enables Redis Sentinel mode for high availability.
	UseSentinel bool `mapstructure:"use_sentinel"`

	// SentinelAddrs contains Sentinel server addresses.
	SentinelAddrs []string `mapstructure:"sentinel_addrs"`

	// MasterName is required for Sentinel mode (e.g., "mymaster")
	MasterName string `mapstructure:"master_name"`

	// Password for Redis authentication (optional)
	Password string `mapstructure:"password"`

	// DB is the Redis database number (0-15)
	DB int `mapstructure:"db"`

	// PoolSize is the maximum number of socket connections
	PoolSize int `mapstructure:"pool_size"`

	// MaxRetries is the maximum number of retries before giving up
	MaxRetries int `mapstructure:"max_retries"`

	// DialTimeout is the timeout for establishing new connections
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// ReadTimeout is the timeout for socket reads
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the timeout for socket writes
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// AllowInsecureSinks permits plain HTTP notification sinks.
	// Development only.
	AllowInsecureSinks bool `mapstructure:"allow_insecure_sinks"`
}

// CoreConfig describes one network-core adapter instance. The map key is
// the selector callers pass in the core query parameter.
type CoreConfig struct {
	// Type is the adapter implementation: "coresim", "open5gs" or "mock".
	Type string `mapstructure:"type"`

	// Default marks the core that answers when no selector is supplied.
	Default bool `mapstructure:"default"`

	// QoSBaseURL is the NEF AsSessionWithQoS endpoint.
	QoSBaseURL string `mapstructure:"qos_base_url"`

	// MonitoringBaseURL is the NEF MonitoringEvent endpoint. Defaults to
	// the QoS base URL.
	MonitoringBaseURL string `mapstructure:"monitoring_base_url"`

	// TrafficBaseURL is the NEF TrafficInfluence endpoint. Defaults to
	// the QoS base URL.
	TrafficBaseURL string `mapstructure:"traffic_base_url"`

	// UeIdentityBaseURL hosts the simulator's subscriber lookup service
	// (coresim only).
	UeIdentityBaseURL string `mapstructure:"ue_identity_base_url"`

	// MetricsURL is the core's exposition page used as the one-shot
	// profile fallback (coresim only).
	MetricsURL string `mapstructure:"metrics_url"`

	// ScsAsID names the gateway toward the core (default: "nef").
	ScsAsID string `mapstructure:"scs_as_id"`
}

// NetworkConfig identifies the home network for roaming derivation.
type NetworkConfig struct {
	// HomeMcc is the home mobile country code.
	HomeMcc string `mapstructure:"home_mcc"`

	// HomeMnc is the home mobile network code.
	HomeMnc string `mapstructure:"home_mnc"`
}

// SimSwapConfig contains SIM Swap policy configuration.
type SimSwapConfig struct {
	// MonitoredDays is the operator's monitored period. It bounds the
	// check maxAge at MonitoredDays * 24 hours and shapes the
	// retrieve-date answer.
	MonitoredDays int `mapstructure:"monitored_days"`
}

// EventsConfig contains notification pipeline configuration.
type EventsConfig struct {
	// Workers is the number of notification delivery goroutines.
	Workers int `mapstructure:"workers"`

	// NotifyTimeout is the per-delivery HTTP timeout.
	NotifyTimeout time.Duration `mapstructure:"notify_timeout"`

	// MaxRetries is the number of delivery attempts per notification.
	MaxRetries int `mapstructure:"max_retries"`

	// InsecureSkipVerify disables sink TLS verification. Development only.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// ExpiryConfig contains expiry worker configuration.
type ExpiryConfig struct {
	// Interval is the time between expiry sweeps.
	Interval time.Duration `mapstructure:"interval"`
}

// TLSConfig contains TLS configuration for the HTTP server.
type TLSConfig struct {
	// Enabled enables TLS for the HTTP server
	Enabled bool `mapstructure:"enabled"`

	// CertFile is the path to the TLS certificate file
	CertFile string `mapstructure:"cert_file"`

	// KeyFile is the path to the TLS private key file
	KeyFile string `mapstructure:"key_file"`

	// MinVersion is the minimum TLS version ("1.2", "1.3")
	MinVersion string `mapstructure:"min_version"`
}

// ObservabilityConfig contains logging and metrics configuration.
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level sets the log level ("debug", "info", "warn", "error", "fatal")
	Level string `mapstructure:"level"`

	// Format sets the log format ("json", "console")
	Format string `mapstructure:"format"`

	// OutputPaths is a list of output destinations (e.g., ["stdout"])
	OutputPaths []string `mapstructure:"output_paths"`

	// Development enables development mode (more verbose, console format)
	Development bool `mapstructure:"development"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled enables Prometheus metrics collection
	Enabled bool `mapstructure:"enabled"`

	// Path is the HTTP path for the metrics endpoint (default: "/metrics")
	Path string `mapstructure:"path"`

	// Namespace is the Prometheus metrics namespace
	Namespace string `mapstructure:"namespace"`

	// Subsystem is the Prometheus metrics subsystem
	Subsystem string `mapstructure:"subsystem"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// EnableCORS enables CORS support
	EnableCORS bool `mapstructure:"enable_cors"`

	// AllowedOrigins is a list of allowed CORS origins
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// SecurityHeadersEnabled adds the standard security response headers.
	SecurityHeadersEnabled bool `mapstructure:"security_headers_enabled"`

	// RateLimitEnabled enables Redis-backed rate limiting
	RateLimitEnabled bool `mapstructure:"rate_limit_enabled"`

	// RateLimitRequests is the per-consumer requests per second
	RateLimitRequests int `mapstructure:"rate_limit_requests"`

	// RateLimitBurst is the burst allowance on top of the steady rate
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

// ValidationConfig contains OpenAPI request validation configuration.
type ValidationConfig struct {
	// Enabled enables OpenAPI request validation
	Enabled bool `mapstructure:"enabled"`

	// ValidateResponse enables OpenAPI response validation (development
	// and testing only)
	ValidateResponse bool `mapstructure:"validate_response"`

	// SpecPath is the path to a custom OpenAPI specification file.
	// If empty, the embedded spec is used.
	SpecPath string `mapstructure:"spec_path"`
}

// Load loads configuration from the specified file path and environment
// variables. Environment variables override file values and are prefixed
// with CAMWEAVE_ (e.g., CAMWEAVE_SERVER_PORT=8080).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/camweave")
	}

	v.SetEnvPrefix("CAMWEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional if all values come from env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_header_bytes", 1048576) // 1MB
	v.SetDefault("server.gin_mode", "release")

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.allow_insecure_sinks", false)

	// Network defaults (the simulator's test PLMN)
	v.SetDefault("network.home_mcc", "001")
	v.SetDefault("network.home_mnc", "01")

	// SIM Swap defaults
	v.SetDefault("sim_swap.monitored_days", 120)

	// Events defaults
	v.SetDefault("events.workers", 4)
	v.SetDefault("events.notify_timeout", "10s")
	v.SetDefault("events.max_retries", 3)
	v.SetDefault("events.insecure_skip_verify", false)

	// Expiry defaults
	v.SetDefault("expiry.interval", "30s")

	// TLS defaults
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.min_version", "1.3")

	// Logging defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.output_paths", []string{"stdout"})
	v.SetDefault("observability.logging.development", false)

	// Metrics defaults
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")
	v.SetDefault("observability.metrics.namespace", "camweave")
	v.SetDefault("observability.metrics.subsystem", "gateway")

	// Security defaults
	v.SetDefault("security.enable_cors", false)
	v.SetDefault("security.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE"})
	v.SetDefault("security.security_headers_enabled", true)
	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	// Validation defaults
	v.SetDefault("validation.enabled", true)
	v.SetDefault("validation.validate_response", false)
	v.SetDefault("validation.spec_path", "")
}

// Validate validates the configuration and returns an error if any values
// are invalid. This should be called after Load().
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	if err := c.validateCores(); err != nil {
		return err
	}
	if err := c.validateTLS(); err != nil {
		return err
	}
	if err := c.validateObservability(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if c.SimSwap.MonitoredDays < 1 {
		return fmt.Errorf("invalid sim_swap monitored_days: %d (must be > 0)", c.SimSwap.MonitoredDays)
	}
	if c.Expiry.Interval < time.Second {
		return fmt.Errorf("invalid expiry interval: %s (must be >= 1s)", c.Expiry.Interval)
	}
	return nil
}

// validateServer validates the server configuration.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.GinMode != "debug" && c.Server.GinMode != "release" && c.Server.GinMode != "test" {
		return fmt.Errorf("invalid gin_mode: %s (must be debug, release, or test)", c.Server.GinMode)
	}
	return nil
}

// validateRedis validates the Redis configuration.
func (c *Config) validateRedis() error {
	if !c.Redis.Enabled {
		return nil
	}
	if c.Redis.UseSentinel {
		if len(c.Redis.SentinelAddrs) == 0 {
			return fmt.Errorf("redis sentinel_addrs cannot be empty in sentinel mode")
		}
		if c.Redis.MasterName == "" {
			return fmt.Errorf("redis master_name is required for sentinel mode")
		}
	} else if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty")
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		return fmt.Errorf("invalid redis db: %d (must be 0-15)", c.Redis.DB)
	}
	return nil
}

// validateCores validates the core adapter configuration. At least one
// core must be configured and exactly one must be the default.
func (c *Config) validateCores() error {
	if len(c.Cores) == 0 {
		return fmt.Errorf("at least one core must be configured")
	}

	defaults := 0
	for name, core := range c.Cores {
		switch core.Type {
		case CoreTypeCoresim, CoreTypeOpen5gs:
			if core.QoSBaseURL == "" {
				return fmt.Errorf("core %s: qos_base_url is required for type %s", name, core.Type)
			}
		case CoreTypeMock:
		default:
			return fmt.Errorf("core %s: unknown type %q", name, core.Type)
		}
		if core.Default {
			defaults++
		}
	}
	if defaults != 1 {
		return fmt.Errorf("exactly one core must be marked default, found %d", defaults)
	}
	return nil
}

// validateTLS validates the TLS configuration.
func (c *Config) validateTLS() error {
	if !c.TLS.Enabled {
		return nil
	}
	if c.TLS.CertFile == "" {
		return fmt.Errorf("tls cert_file is required when TLS is enabled")
	}
	if c.TLS.KeyFile == "" {
		return fmt.Errorf("tls key_file is required when TLS is enabled")
	}
	if _, err := os.Stat(c.TLS.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("tls cert_file does not exist: %s", c.TLS.CertFile)
	}
	if _, err := os.Stat(c.TLS.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("tls key_file does not exist: %s", c.TLS.KeyFile)
	}
	if c.TLS.MinVersion != "1.2" && c.TLS.MinVersion != "1.3" {
		return fmt.Errorf("invalid tls min_version: %s (must be 1.2 or 1.3)", c.TLS.MinVersion)
	}
	return nil
}

// validateObservability validates the observability configuration.
func (c *Config) validateObservability() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Observability.Logging.Level)
	}
	if c.Observability.Logging.Format != "json" && c.Observability.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format: %s (must be json or console)", c.Observability.Logging.Format)
	}
	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		return fmt.Errorf("metrics path cannot be empty when metrics are enabled")
	}
	return nil
}

// validateSecurity validates the security configuration.
func (c *Config) validateSecurity() error {
	if c.Security.RateLimitEnabled {
		if c.Security.RateLimitRequests < 1 {
			return fmt.Errorf("invalid rate_limit_requests: %d (must be > 0)", c.Security.RateLimitRequests)
		}
		if c.Security.RateLimitBurst < c.Security.RateLimitRequests {
			return fmt.Errorf("rate_limit_burst must be at least rate_limit_requests")
		}
	}
	return nil
}

// DefaultCoreName returns the selector name of the default core.
func (c *Config) DefaultCoreName() string {
	for name, core := range c.Cores {
		if core.Default {
			return name
		}
	}
	return ""
}
