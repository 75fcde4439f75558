package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Cache.FreshWindow != 5*time.Minute {
		t.Errorf("expected 5m fresh window, got %v", cfg.Cache.FreshWindow)
	}
	if cfg.Cache.StaleWindow != 30*time.Minute {
		t.Errorf("expected 30m stale window, got %v", cfg.Cache.StaleWindow)
	}
	if cfg.Cache.MaxAge != 24*time.Hour {
		t.Errorf("expected 24h max age, got %v", cfg.Cache.MaxAge)
	}
	if cfg.Pricing.MaxSwing != 0.9 {
		t.Errorf("expected 0.9 max swing, got %f", cfg.Pricing.MaxSwing)
	}
	if cfg.Refresh.Workers != 2 {
		t.Errorf("expected 2 refresh workers, got %d", cfg.Refresh.Workers)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis should be disabled by default")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
http:
  port: 9090
cache:
  fresh_window: 2m
  stale_window: 10m
  max_age: 12h
pricing:
  max_swing: 0.5
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Cache.FreshWindow != 2*time.Minute {
		t.Errorf("expected 2m fresh window, got %v", cfg.Cache.FreshWindow)
	}
	if cfg.Pricing.MaxSwing != 0.5 {
		t.Errorf("expected 0.5 max swing, got %f", cfg.Pricing.MaxSwing)
	}
	// Untouched keys keep their defaults.
	if cfg.Refresh.QueueSize != 64 {
		t.Errorf("expected default queue size 64, got %d", cfg.Refresh.QueueSize)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"zero fresh window", func(c *Config) { c.Cache.FreshWindow = 0 }},
		{"stale window below fresh", func(c *Config) { c.Cache.StaleWindow = c.Cache.FreshWindow / 2 }},
		{"max age below stale", func(c *Config) { c.Cache.MaxAge = c.Cache.StaleWindow / 2 }},
		{"negative max swing", func(c *Config) { c.Pricing.MaxSwing = -1 }},
		{"zero refresh workers", func(c *Config) { c.Refresh.Workers = 0 }},
		{"bad log level", func(c *Config) { c.Observability.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Observability.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}
