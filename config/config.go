// Package config loads and validates the service configuration from a
// YAML file with APPGEN_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/KOMKZ/go-appgen/billing"
	"github.com/KOMKZ/go-appgen/database"
	"github.com/KOMKZ/go-appgen/logger"
	"github.com/KOMKZ/go-appgen/ratelimit"
	"github.com/KOMKZ/go-appgen/redisx"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ApplyDefaults fills unset server fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	// Streaming responses stay open far longer than a normal request;
	// 0 keeps the write side unbounded unless configured.
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

// Validate checks the server configuration.
func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
	)
}

// Config is the root service configuration.
type Config struct {
	Server    ServerConfig         `mapstructure:"server"`
	Logger    logger.ManagerConfig `mapstructure:"logger"`
	Redis     redisx.Config        `mapstructure:"redis"`
	RateLimit ratelimit.Config     `mapstructure:"rate_limit"`
	Database  database.Config      `mapstructure:"database"`
	Billing   billing.Config       `mapstructure:"billing"`
}

// Load reads the config file at path, applies APPGEN_* environment
// overrides and per-section defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APPGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s failed: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills all sections.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()
	c.Logger.ApplyDefaults()
	c.RateLimit.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Billing.ApplyDefaults()
	// Redis settings only matter for the redis store type.
	if ratelimit.StoreType(c.RateLimit.StoreType) == ratelimit.StoreTypeRedis {
		c.Redis.ApplyDefaults()
	}
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if ratelimit.StoreType(c.RateLimit.StoreType) == ratelimit.StoreTypeRedis {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if c.Database.DSN != "" {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.Billing.Enabled {
		if err := validation.ValidateStruct(&c.Billing,
			validation.Field(&c.Billing.Endpoint, validation.Required),
		); err != nil {
			return fmt.Errorf("billing: %w", err)
		}
	}
	return nil
}
