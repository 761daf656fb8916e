package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.GinMode = "release"
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "localhost:6379"
	cfg.Cores = map[string]CoreConfig{
		"mock": {Type: CoreTypeMock, Default: true},
	}
	cfg.SimSwap.MonitoredDays = 120
	cfg.Expiry.Interval = 30 * time.Second
	cfg.Observability.Logging.Level = "info"
	cfg.Observability.Logging.Format = "json"
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Path = "/metrics"
	cfg.Security.RateLimitEnabled = true
	cfg.Security.RateLimitRequests = 100
	cfg.Security.RateLimitBurst = 200
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
cores:
  mock:
    type: mock
    default: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "001", cfg.Network.HomeMcc)
	assert.Equal(t, "01", cfg.Network.HomeMnc)
	assert.Equal(t, 120, cfg.SimSwap.MonitoredDays)
	assert.Equal(t, 4, cfg.Events.Workers)
	assert.Equal(t, 30*time.Second, cfg.Expiry.Interval)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
	assert.Equal(t, "camweave", cfg.Observability.Metrics.Namespace)
	assert.True(t, cfg.Validation.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  gin_mode: debug
redis:
  enabled: false
network:
  home_mcc: "208"
  home_mnc: "15"
sim_swap:
  monitored_days: 60
cores:
  sim:
    type: coresim
    default: true
    qos_base_url: http://coresim:8090/3gpp-as-session-with-qos/v1
    ue_identity_base_url: http://coresim:8090/ue-identity
  lab:
    type: open5gs
    qos_base_url: http://open5gs-nef:7777/3gpp-as-session-with-qos/v1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.GinMode)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "208", cfg.Network.HomeMcc)
	assert.Equal(t, 60, cfg.SimSwap.MonitoredDays)

	require.Len(t, cfg.Cores, 2)
	sim := cfg.Cores["sim"]
	assert.Equal(t, CoreTypeCoresim, sim.Type)
	assert.True(t, sim.Default)
	assert.Equal(t, "http://coresim:8090/3gpp-as-session-with-qos/v1", sim.QoSBaseURL)
	assert.Equal(t, "sim", cfg.DefaultCoreName())

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
cores:
  mock:
    type: mock
    default: true
`)

	t.Setenv("CAMWEAVE_SERVER_PORT", "7070")
	t.Setenv("CAMWEAVE_REDIS_ADDR", "redis.internal:6380")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

func TestLoad_MissingFileIsTolerated(t *testing.T) {
	t.Setenv("CAMWEAVE_SERVER_PORT", "8181")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not: valid")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "invalid gin mode",
			mutate:  func(c *Config) { c.Server.GinMode = "turbo" },
			wantErr: "invalid gin_mode",
		},
		{
			name:    "redis addr required",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis addr cannot be empty",
		},
		{
			name: "sentinel requires master name",
			mutate: func(c *Config) {
				c.Redis.UseSentinel = true
				c.Redis.SentinelAddrs = []string{"s1:26379"}
				c.Redis.MasterName = ""
			},
			wantErr: "master_name is required",
		},
		{
			name:    "invalid redis db",
			mutate:  func(c *Config) { c.Redis.DB = 16 },
			wantErr: "invalid redis db",
		},
		{
			name:    "no cores",
			mutate:  func(c *Config) { c.Cores = nil },
			wantErr: "at least one core",
		},
		{
			name: "unknown core type",
			mutate: func(c *Config) {
				c.Cores["weird"] = CoreConfig{Type: "epc"}
			},
			wantErr: "unknown type",
		},
		{
			name: "coresim requires qos base url",
			mutate: func(c *Config) {
				c.Cores = map[string]CoreConfig{
					"sim": {Type: CoreTypeCoresim, Default: true},
				}
			},
			wantErr: "qos_base_url is required",
		},
		{
			name: "no default core",
			mutate: func(c *Config) {
				c.Cores = map[string]CoreConfig{
					"mock": {Type: CoreTypeMock},
				}
			},
			wantErr: "exactly one core must be marked default",
		},
		{
			name: "two default cores",
			mutate: func(c *Config) {
				c.Cores = map[string]CoreConfig{
					"a": {Type: CoreTypeMock, Default: true},
					"b": {Type: CoreTypeMock, Default: true},
				}
			},
			wantErr: "exactly one core must be marked default",
		},
		{
			name: "tls missing cert",
			mutate: func(c *Config) {
				c.TLS.Enabled = true
				c.TLS.KeyFile = "key.pem"
				c.TLS.MinVersion = "1.3"
			},
			wantErr: "cert_file is required",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Observability.Logging.Level = "verbose" },
			wantErr: "invalid logging level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Observability.Logging.Format = "xml" },
			wantErr: "invalid logging format",
		},
		{
			name:    "invalid monitored days",
			mutate:  func(c *Config) { c.SimSwap.MonitoredDays = 0 },
			wantErr: "monitored_days",
		},
		{
			name:    "expiry interval too short",
			mutate:  func(c *Config) { c.Expiry.Interval = 100 * time.Millisecond },
			wantErr: "invalid expiry interval",
		},
		{
			name: "rate limit burst below rate",
			mutate: func(c *Config) {
				c.Security.RateLimitBurst = 10
			},
			wantErr: "rate_limit_burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
