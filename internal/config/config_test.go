package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Backends: BackendsConfig{
			Portal: PortalConfig{BaseURL: "https://portal.example.com"},
			OGC:    OGCConfig{BaseURL: "https://hub.example.com/api/search/v1"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"portal only", func(c *Config) { c.Backends.OGC.BaseURL = "" }, ""},
		{
			"invalid port", func(c *Config) { c.HTTP.Port = 0 },
			"http.port must be between 1 and 65535, got 0",
		},
		{
			"no backends", func(c *Config) { c.Backends = BackendsConfig{} },
			"at least one of backends.portal.base_url, backends.ogc.base_url is required",
		},
		{
			"relative portal url", func(c *Config) { c.Backends.Portal.BaseURL = "portal.example.com" },
			`backends.portal.base_url must be an absolute URL, got "portal.example.com"`,
		},
		{
			"unknown collection kind", func(c *Config) { c.Backends.OGC.Collections = map[string]string{"widget": "w"} },
			`backends.ogc.collections: unknown entity kind "widget"`,
		},
		{
			"negative rate", func(c *Config) { c.Outbound.RatePerSec = -1 },
			"outbound.rate_per_sec must not be negative, got -1",
		},
		{
			"failure ratio above one", func(c *Config) { c.Outbound.Breaker.FailureRatio = 1.5 },
			"outbound.breaker.failure_ratio must be at most 1, got 1.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != tt.wantErr {
				t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Cache.KeyPrefix != "hubsearch:" {
		t.Errorf("expected KeyPrefix='hubsearch:', got %q", cfg.Cache.KeyPrefix)
	}
	if cfg.Cache.TTLSec != 300 {
		t.Errorf("expected TTLSec=300, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Cache.DialTimeoutSec != 5 {
		t.Errorf("expected DialTimeoutSec=5, got %d", cfg.Cache.DialTimeoutSec)
	}
	if cfg.Outbound.TimeoutSec != 15 {
		t.Errorf("expected Outbound.TimeoutSec=15, got %d", cfg.Outbound.TimeoutSec)
	}
	if cfg.Outbound.Burst != 0 {
		t.Errorf("burst should stay 0 without a rate, got %d", cfg.Outbound.Burst)
	}
	if cfg.Outbound.Breaker.MinRequests != 3 || cfg.Outbound.Breaker.FailureRatio != 0.6 {
		t.Errorf("unexpected breaker defaults: %+v", cfg.Outbound.Breaker)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Cache:    CacheConfig{KeyPrefix: "custom:", TTLSec: 10},
		Outbound: OutboundConfig{RatePerSec: 5, Burst: 3},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Cache.KeyPrefix != "custom:" || cfg.Cache.TTLSec != 10 {
		t.Errorf("cache overridden: %+v", cfg.Cache)
	}
	if cfg.Outbound.Burst != 3 {
		t.Errorf("expected Burst=3, got %d", cfg.Outbound.Burst)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o750); err != nil {
		t.Fatal(err)
	}
	yml := `http:
  port: ${HUBSEARCH_TEST_PORT:-9090}
backends:
  portal:
    base_url: ${HUBSEARCH_TEST_PORTAL}
  ogc:
    collections:
      event: my-events
`
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("HUBSEARCH_TEST_PORTAL", "https://portal.example.com")

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if cfg.Backends.Portal.BaseURL != "https://portal.example.com" {
		t.Errorf("portal = %q", cfg.Backends.Portal.BaseURL)
	}
	if got := cfg.OGCCollections(); got["event"] != "my-events" {
		t.Errorf("collections = %v", got)
	}
}
