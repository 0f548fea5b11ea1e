package rabbitmq

import (
	"fmt"
	"net/url"

	"webhook-gateway/internal/common/errors"
)

const maxPoolSize = 100

// Config points the publisher at a broker. With no Exchange, events go
// through the default exchange straight to Queue.
type Config struct {
	URL      string
	PoolSize int
	// Queue receives events whose message names no topic
	Queue string
	// Exchange, when set, is declared as a durable direct exchange and the
	// queue is bound to it with the message key
	Exchange string
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.ConfigError("rabbitmq: URL is required")
	}
	if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
		return errors.ConfigError("rabbitmq: URL must use the amqp or amqps scheme")
	}

	if c.PoolSize <= 0 {
		c.PoolSize = 2
	}
	if c.PoolSize > maxPoolSize {
		return errors.ConfigError(fmt.Sprintf("rabbitmq: pool size %d exceeds %d", c.PoolSize, maxPoolSize))
	}
	if c.Queue == "" && c.Exchange == "" {
		c.Queue = DefaultQueue
	}
	return nil
}

func (c *Config) GetType() string { return "rabbitmq" }

// GetConnectionString omits credentials
func (c *Config) GetConnectionString() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "rabbitmq://***"
	}
	return "rabbitmq://" + u.Host
}
