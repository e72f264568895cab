package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
)

// Config holds the hubsearch API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Backends BackendsConfig `yaml:"backends"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Outbound OutboundConfig `yaml:"outbound"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendsConfig holds the search backend endpoints.
type BackendsConfig struct {
	Portal PortalConfig `yaml:"portal"`
	OGC    OGCConfig    `yaml:"ogc"`
}

// PortalConfig holds the legacy portal endpoint.
type PortalConfig struct {
	BaseURL string `yaml:"base_url"`
}

// OGCConfig holds the OGC collection endpoint.
type OGCConfig struct {
	BaseURL string `yaml:"base_url"`
	// Collections maps entity kinds to collection ids; unset kinds use the built-in ids.
	Collections map[string]string `yaml:"collections"`
}

// CacheConfig holds the entity cache settings. An empty Addrs disables the cache.
type CacheConfig struct {
	Addrs          []string `yaml:"addrs"`
	Password       string   `yaml:"password"`
	KeyPrefix      string   `yaml:"key_prefix"`
	TTLSec         int      `yaml:"ttl_sec"`
	DialTimeoutSec int      `yaml:"dial_timeout_sec"`
}

// OutboundConfig holds settings for requests to the search backends.
type OutboundConfig struct {
	TimeoutSec int           `yaml:"timeout_sec"`
	RatePerSec float64       `yaml:"rate_per_sec"` // 0 = unlimited
	Burst      int           `yaml:"burst"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings. The breaker trips once
// MinRequests have been seen in an interval and FailureRatio of them failed.
type BreakerConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MaxRequests  uint32  `yaml:"max_requests"` // half-open probes
	IntervalSec  int     `yaml:"interval_sec"` // closed-state counter reset
	TimeoutSec   int     `yaml:"timeout_sec"`  // open -> half-open
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "hubsearch:"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	if c.Cache.DialTimeoutSec <= 0 {
		c.Cache.DialTimeoutSec = 5
	}
	if c.Outbound.TimeoutSec <= 0 {
		c.Outbound.TimeoutSec = 15
	}
	if c.Outbound.RatePerSec > 0 && c.Outbound.Burst <= 0 {
		c.Outbound.Burst = 1
	}
	if c.Outbound.Breaker.MaxRequests == 0 {
		c.Outbound.Breaker.MaxRequests = 1
	}
	if c.Outbound.Breaker.IntervalSec <= 0 {
		c.Outbound.Breaker.IntervalSec = 60
	}
	if c.Outbound.Breaker.TimeoutSec <= 0 {
		c.Outbound.Breaker.TimeoutSec = 30
	}
	if c.Outbound.Breaker.MinRequests == 0 {
		c.Outbound.Breaker.MinRequests = 3
	}
	if c.Outbound.Breaker.FailureRatio <= 0 {
		c.Outbound.Breaker.FailureRatio = 0.6
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Backends.Portal.BaseURL == "" && c.Backends.OGC.BaseURL == "" {
		return fmt.Errorf("at least one of backends.portal.base_url, backends.ogc.base_url is required")
	}
	for name, raw := range map[string]string{
		"backends.portal.base_url": c.Backends.Portal.BaseURL,
		"backends.ogc.base_url":    c.Backends.OGC.BaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	for kind := range c.Backends.OGC.Collections {
		if !entity.Kind(kind).IsValid() {
			return fmt.Errorf("backends.ogc.collections: unknown entity kind %q", kind)
		}
	}
	if c.Outbound.RatePerSec < 0 {
		return fmt.Errorf("outbound.rate_per_sec must not be negative, got %v", c.Outbound.RatePerSec)
	}
	if c.Outbound.Breaker.FailureRatio > 1 {
		return fmt.Errorf("outbound.breaker.failure_ratio must be at most 1, got %v", c.Outbound.Breaker.FailureRatio)
	}
	return nil
}

// OGCCollections returns the configured collection ids by entity kind.
func (c *Config) OGCCollections() map[entity.Kind]string {
	out := make(map[entity.Kind]string, len(c.Backends.OGC.Collections))
	for k, v := range c.Backends.OGC.Collections {
		out[entity.Kind(k)] = v
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
