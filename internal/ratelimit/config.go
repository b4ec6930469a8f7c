package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CategoryLimit is the admission policy for one endpoint category.
type CategoryLimit struct {
	// SoftThreshold is the request count at which a client is considered
	// warned within the current window. Still admitted.
	SoftThreshold int `json:"soft_threshold"`
	// HardThreshold is the maximum admitted requests per window. The
	// request after it is denied and starts a block.
	HardThreshold int           `json:"hard_threshold"`
	Window        time.Duration `json:"window"`
	// BlockDuration is the short deny period after a hard-threshold trip.
	BlockDuration time.Duration `json:"block_duration"`
	// EscalationThreshold is the consecutive-violation count that turns a
	// block into a penalty block.
	EscalationThreshold int `json:"escalation_threshold"`
	// EscalationFactor multiplies BlockDuration for penalty blocks.
	EscalationFactor float64 `json:"escalation_factor"`
}

// Config holds per-category limits plus engine-wide tuning.
type Config struct {
	Default    CategoryLimit            `json:"default"`
	Categories map[string]CategoryLimit `json:"categories"`
	// IdleTTL bounds memory: records untouched for longer are evictable.
	IdleTTL time.Duration `json:"idle_ttl"`
}

// DefaultConfig returns the built-in policy. Thresholds are tunable
// defaults, overridable per deployment via LoadLimits.
func DefaultConfig() Config {
	return Config{
		Default: CategoryLimit{
			SoftThreshold:       30,
			HardThreshold:       60,
			Window:              time.Minute,
			BlockDuration:       time.Minute,
			EscalationThreshold: 3,
			EscalationFactor:    10,
		},
		Categories: map[string]CategoryLimit{
			"contact-form": {
				SoftThreshold:       3,
				HardThreshold:       5,
				Window:              time.Minute,
				BlockDuration:       time.Minute,
				EscalationThreshold: 3,
				EscalationFactor:    10,
			},
			"admin-api": {
				SoftThreshold:       20,
				HardThreshold:       30,
				Window:              time.Minute,
				BlockDuration:       time.Minute,
				EscalationThreshold: 3,
				EscalationFactor:    10,
			},
		},
		IdleTTL: 30 * time.Minute,
	}
}

// Limit resolves the policy for a category, falling back to Default.
func (c Config) Limit(category string) CategoryLimit {
	if l, ok := c.Categories[category]; ok {
		return l
	}
	return c.Default
}

// Validate rejects configs that would make the state machine degenerate.
func (c Config) Validate() error {
	if err := c.Default.validate("default"); err != nil {
		return err
	}
	for name, l := range c.Categories {
		if err := l.validate(name); err != nil {
			return err
		}
	}
	if c.IdleTTL <= 0 {
		return fmt.Errorf("idle_ttl must be positive, got %s", c.IdleTTL)
	}
	return nil
}

func (l CategoryLimit) validate(name string) error {
	if l.HardThreshold <= 0 {
		return fmt.Errorf("category %q: hard_threshold must be positive", name)
	}
	if l.SoftThreshold <= 0 || l.SoftThreshold > l.HardThreshold {
		return fmt.Errorf("category %q: soft_threshold must be in 1..hard_threshold", name)
	}
	if l.Window <= 0 {
		return fmt.Errorf("category %q: window must be positive", name)
	}
	if l.BlockDuration <= 0 {
		return fmt.Errorf("category %q: block_duration must be positive", name)
	}
	if l.EscalationThreshold <= 0 {
		return fmt.Errorf("category %q: escalation_threshold must be positive", name)
	}
	if l.EscalationFactor < 1 {
		return fmt.Errorf("category %q: escalation_factor must be >= 1", name)
	}
	return nil
}

// limitsFile is the YAML shape of a limits override file. Durations are
// strings ("30s", "5m") parsed with time.ParseDuration; zero-valued
// fields keep their defaults.
type limitsFile struct {
	Default    *limitSpec           `yaml:"default"`
	Categories map[string]limitSpec `yaml:"categories"`
	IdleTTL    string               `yaml:"idle_ttl"`
}

type limitSpec struct {
	SoftThreshold       int     `yaml:"soft_threshold"`
	HardThreshold       int     `yaml:"hard_threshold"`
	Window              string  `yaml:"window"`
	BlockDuration       string  `yaml:"block_duration"`
	EscalationThreshold int     `yaml:"escalation_threshold"`
	EscalationFactor    float64 `yaml:"escalation_factor"`
}

func (s limitSpec) apply(base CategoryLimit) (CategoryLimit, error) {
	if s.SoftThreshold != 0 {
		base.SoftThreshold = s.SoftThreshold
	}
	if s.HardThreshold != 0 {
		base.HardThreshold = s.HardThreshold
	}
	if s.Window != "" {
		d, err := time.ParseDuration(s.Window)
		if err != nil {
			return base, fmt.Errorf("window: %w", err)
		}
		base.Window = d
	}
	if s.BlockDuration != "" {
		d, err := time.ParseDuration(s.BlockDuration)
		if err != nil {
			return base, fmt.Errorf("block_duration: %w", err)
		}
		base.BlockDuration = d
	}
	if s.EscalationThreshold != 0 {
		base.EscalationThreshold = s.EscalationThreshold
	}
	if s.EscalationFactor != 0 {
		base.EscalationFactor = s.EscalationFactor
	}
	return base, nil
}

// LoadLimits reads a YAML limits file and overlays it on the built-in
// defaults, so a deployment only declares what it changes.
func LoadLimits(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read limits file: %w", err)
	}

	var file limitsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("parse limits file %s: %w", path, err)
	}

	if file.Default != nil {
		if cfg.Default, err = file.Default.apply(cfg.Default); err != nil {
			return Config{}, fmt.Errorf("category default: %w", err)
		}
	}
	for name, spec := range file.Categories {
		base := cfg.Limit(name)
		limit, err := spec.apply(base)
		if err != nil {
			return Config{}, fmt.Errorf("category %q: %w", name, err)
		}
		cfg.Categories[name] = limit
	}
	if file.IdleTTL != "" {
		d, err := time.ParseDuration(file.IdleTTL)
		if err != nil {
			return Config{}, fmt.Errorf("idle_ttl: %w", err)
		}
		cfg.IdleTTL = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
