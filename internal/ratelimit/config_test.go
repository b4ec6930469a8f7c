package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfig_LimitFallsBackToDefault(t *testing.T) {
	cfg := DefaultConfig()

	got := cfg.Limit("no-such-category")
	if got != cfg.Default {
		t.Errorf("unknown category should use the default limit, got %+v", got)
	}

	if cfg.Limit("contact-form").HardThreshold == cfg.Default.HardThreshold {
		t.Error("contact-form should carry its own, stricter limit")
	}
}

func TestConfig_ValidateRejectsDegenerate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero hard threshold", func(c *Config) { c.Default.HardThreshold = 0 }},
		{"soft above hard", func(c *Config) { c.Default.SoftThreshold = c.Default.HardThreshold + 1 }},
		{"zero window", func(c *Config) { c.Default.Window = 0 }},
		{"negative block", func(c *Config) { c.Default.BlockDuration = -time.Second }},
		{"factor below one", func(c *Config) { c.Default.EscalationFactor = 0.5 }},
		{"zero idle ttl", func(c *Config) { c.IdleTTL = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadLimits_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	data := []byte(`
categories:
  contact-form:
    soft_threshold: 2
    hard_threshold: 4
    window: 30s
    block_duration: 30s
    escalation_threshold: 2
    escalation_factor: 20
idle_ttl: 10m
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLimits(path)
	if err != nil {
		t.Fatalf("LoadLimits: %v", err)
	}

	cf := cfg.Limit("contact-form")
	if cf.HardThreshold != 4 || cf.Window != 30*time.Second {
		t.Errorf("contact-form limit not overridden: %+v", cf)
	}
	if cfg.IdleTTL != 10*time.Minute {
		t.Errorf("idle_ttl = %s, want 10m", cfg.IdleTTL)
	}
	// Untouched categories keep their defaults.
	if cfg.Limit("admin-api") != DefaultConfig().Categories["admin-api"] {
		t.Error("admin-api default should survive the overlay")
	}
}

func TestLoadLimits_MissingFile(t *testing.T) {
	if _, err := LoadLimits(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file should error")
	}
}
