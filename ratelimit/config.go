package ratelimit

import (
	"fmt"
	"time"
)

// Config configures both limiters.
type Config struct {
	// StoreType: memory or redis
	StoreType string `mapstructure:"store_type"`

	// KeyPrefix namespaces all limiter keys in the shared store.
	KeyPrefix string `mapstructure:"key_prefix"`

	// DailyLimit is the per-tenant request ceiling for one window.
	// 0 disables the system rate limiter.
	DailyLimit int64 `mapstructure:"daily_limit"`

	// Window is the quota window length (default 24h).
	Window time.Duration `mapstructure:"window"`

	// DefaultMaxActiveRequests is the process-wide per-app concurrency
	// ceiling. 0 means unlimited. The effective per-app ceiling is the
	// minimum non-zero of this and the app's own limit.
	DefaultMaxActiveRequests int64 `mapstructure:"default_max_active_requests"`

	// MaxTicketAge is how long an admission ticket may stay active
	// before it is treated as leaked (crashed process, lost stream)
	// and pruned.
	MaxTicketAge time.Duration `mapstructure:"max_ticket_age"`

	// RecalcInterval is how often the janitor prunes stale tickets.
	RecalcInterval time.Duration `mapstructure:"recalc_interval"`
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		StoreType:                string(StoreTypeMemory),
		KeyPrefix:                "appgen:",
		DailyLimit:               5000,
		Window:                   24 * time.Hour,
		DefaultMaxActiveRequests: 0,
		MaxTicketAge:             10 * time.Minute,
		RecalcInterval:           time.Minute,
	}
}

// ApplyDefaults fills zero-value fields with defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.StoreType == "" {
		c.StoreType = def.StoreType
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = def.KeyPrefix
	}
	if c.Window == 0 {
		c.Window = def.Window
	}
	if c.MaxTicketAge == 0 {
		c.MaxTicketAge = def.MaxTicketAge
	}
	if c.RecalcInterval == 0 {
		c.RecalcInterval = def.RecalcInterval
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch StoreType(c.StoreType) {
	case StoreTypeMemory, StoreTypeRedis:
	default:
		return fmt.Errorf("%w: unsupported store_type %q", ErrInvalidConfig, c.StoreType)
	}
	if c.DailyLimit < 0 {
		return fmt.Errorf("%w: daily_limit must be >= 0, got %d", ErrInvalidConfig, c.DailyLimit)
	}
	if c.DefaultMaxActiveRequests < 0 {
		return fmt.Errorf("%w: default_max_active_requests must be >= 0, got %d", ErrInvalidConfig, c.DefaultMaxActiveRequests)
	}
	if c.Window < 0 || c.MaxTicketAge < 0 || c.RecalcInterval < 0 {
		return fmt.Errorf("%w: durations must be >= 0", ErrInvalidConfig)
	}
	return nil
}
