package redis

import (
	"strconv"

	"webhook-gateway/internal/common/errors"
)

// Config is used when the broker opens its own connection. When the gateway
// already holds a Redis client only the stream settings matter.
type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	// Stream receives events whose message names no topic
	Stream string
	// StreamMaxLen trims streams to roughly this many entries; 0 keeps all
	StreamMaxLen int64
}

// DefaultConfig targets a local Redis and caps streams at 10000 entries
func DefaultConfig() *Config {
	return &Config{
		Address:      "localhost:6379",
		PoolSize:     10,
		Stream:       DefaultStream,
		StreamMaxLen: 10000,
	}
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.ConfigError("redis broker: address is required")
	}
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	c.StreamMaxLen = max(c.StreamMaxLen, 0)
	return nil
}

func (c *Config) GetType() string { return "redis" }

func (c *Config) GetConnectionString() string {
	return "redis://" + c.Address + "/" + strconv.Itoa(c.DB)
}
