// Package redisx builds the shared Redis client used as the
// cross-process store for admission counters and active-request sets.
package redisx

import (
	"fmt"
	"time"
)

// Mode values for Config.Mode.
const (
	ModeStandalone = "standalone"
	ModeCluster    = "cluster"
)

// Config configures the Redis connection.
type Config struct {
	// Mode: "standalone" or "cluster".
	Mode string `mapstructure:"mode"`

	// Addrs is the address list. Standalone mode uses the first entry.
	Addrs []string `mapstructure:"addrs"`

	// Password (optional).
	Password string `mapstructure:"password"`

	// DB is the database number (standalone mode only).
	DB int `mapstructure:"db"`

	// KeyPrefix namespaces every key written by this service.
	KeyPrefix string `mapstructure:"key_prefix"`

	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "appgen:"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 5
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Mode != ModeStandalone && c.Mode != ModeCluster {
		return fmt.Errorf("invalid mode: %s (must be standalone or cluster)", c.Mode)
	}
	if len(c.Addrs) == 0 {
		return fmt.Errorf("addrs cannot be empty")
	}
	if c.Mode == ModeStandalone && (c.DB < 0 || c.DB > 15) {
		return fmt.Errorf("db must be between 0 and 15, got: %d", c.DB)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must be >= 0, got: %d", c.PoolSize)
	}
	return nil
}
