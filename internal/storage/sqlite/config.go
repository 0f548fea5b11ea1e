package sqlite

import (
	"fmt"
	"strings"
	"time"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/storage"
)

const defaultBusyTimeout = 5 * time.Second

// Config selects the database file. ":memory:" gives a private in-process
// database that lives as long as the adapter.
type Config struct {
	DatabasePath string
	// BusyTimeout is how long a writer waits on a locked database
	BusyTimeout time.Duration
	Cipher      *storage.SecretCipher
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return errors.ConfigError("sqlite: database path is required")
	}
	if c.BusyTimeout < 0 {
		return errors.ConfigError("sqlite: busy timeout must not be negative")
	}
	return nil
}

func (c *Config) GetType() string { return "sqlite" }

func (c *Config) GetConnectionString() string { return c.DatabasePath }

func (c *Config) inMemory() bool {
	return strings.HasPrefix(c.DatabasePath, ":memory:")
}

// dsn appends driver options unless the path already carries a query
func (c *Config) dsn() string {
	if strings.Contains(c.DatabasePath, "?") {
		return c.DatabasePath
	}
	timeout := c.BusyTimeout
	if timeout == 0 {
		timeout = defaultBusyTimeout
	}
	return fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=on", c.DatabasePath, timeout.Milliseconds())
}

// Factory registers the sqlite backend
type Factory struct{}

func (f *Factory) Create(config storage.Config) (storage.Storage, error) {
	sqliteConfig, ok := config.(*Config)
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("sqlite: unexpected config type %T", config))
	}
	return NewAdapter(sqliteConfig)
}

func (f *Factory) GetType() string { return "sqlite" }
