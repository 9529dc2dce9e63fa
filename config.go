package goOverlay

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls the overlay engine. Build it from DefaultConfig and
// override fields, or load it from YAML with LoadConfigFile.
type Config struct {
	Suspension SuspensionConfig `yaml:"suspension"`
	Activity   ActivityConfig   `yaml:"activity"`
	Store      StoreConfig      `yaml:"store"`
	Session    SessionConfig    `yaml:"session"`
	Audit      AuditConfig      `yaml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Admin      AdminConfig      `yaml:"admin"`
}

/*
====================================
OVERLAY CONFIG
====================================
*/

// SuspensionConfig sets the lockout window applied by Suspend.
type SuspensionConfig struct {
	Duration time.Duration `yaml:"duration"`
}

// ActivityConfig bounds the activity ledger. MaxEvents of zero means no cap
// beyond the retention window.
type ActivityConfig struct {
	Retention time.Duration `yaml:"retention"`
	MaxEvents int           `yaml:"max_events"`
}

// StoreConfig names where collections live in the key-value backend.
type StoreConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// SessionConfig tunes the session guard.
type SessionConfig struct {
	StreakEnabled bool `yaml:"streak_enabled"`
	// RejectExpiredTokens makes RestoreSession discard stored credentials
	// whose JWT exp claim has passed. Off by default.
	RejectExpiredTokens bool `yaml:"reject_expired_tokens"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
ADMIN CONFIG
====================================
*/

// AdminConfig guards the admin console API. Roles lists the session roles
// allowed to call it; RateLimit is requests per second per client.
type AdminConfig struct {
	Roles     []string `yaml:"roles"`
	RateLimit float64  `yaml:"rate_limit"`
	Burst     int      `yaml:"burst"`
}

func defaultConfig() Config {
	return Config{
		Suspension: SuspensionConfig{
			Duration: 24 * time.Hour,
		},
		Activity: ActivityConfig{
			Retention: 24 * time.Hour,
			MaxEvents: 0,
		},
		Store: StoreConfig{
			KeyPrefix: "overlay.",
		},
		Session: SessionConfig{
			StreakEnabled:       true,
			RejectExpiredTokens: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Admin: AdminConfig{
			Roles:     []string{"admin"},
			RateLimit: 10,
			Burst:     20,
		},
	}
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Admin.Roles != nil {
		out.Admin.Roles = append([]string(nil), cfg.Admin.Roles...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Suspension
	if c.Suspension.Duration <= 0 {
		return errors.New("Suspension Duration must be > 0")
	}

	// Activity
	if c.Activity.Retention <= 0 {
		return errors.New("Activity Retention must be > 0")
	}
	if c.Activity.MaxEvents < 0 {
		return errors.New("Activity MaxEvents must be >= 0")
	}

	// Store
	if strings.ContainsAny(c.Store.KeyPrefix, "/\\ ") {
		return errors.New("Store KeyPrefix must not contain path separators or spaces")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Admin
	for _, role := range c.Admin.Roles {
		if strings.TrimSpace(role) == "" {
			return errors.New("Admin Roles must not contain empty names")
		}
	}
	if c.Admin.RateLimit < 0 {
		return errors.New("Admin RateLimit must be >= 0")
	}
	if c.Admin.RateLimit > 0 && c.Admin.Burst <= 0 {
		return errors.New("Admin Burst must be > 0 when RateLimit is set")
	}

	return nil
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
// Durations are written as Go duration strings ("24h", "90m").
func ParseConfig(data []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a YAML config file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}
