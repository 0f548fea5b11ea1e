package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/storage"
)

type Config struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
	MaxConns int32

	// SkipMigrations leaves the schema alone, for databases managed elsewhere
	SkipMigrations bool
	Cipher         *storage.SecretCipher
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

func (c *Config) GetType() string {
	return "postgres"
}

func (c *Config) GetConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

type Factory struct{}

func (f *Factory) Create(config storage.Config) (storage.Storage, error) {
	pgConfig, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type for PostgreSQL storage")
	}

	if !pgConfig.SkipMigrations {
		if err := RunMigrations(logging.GetGlobalLogger(), pgConfig.GetConnectionString()); err != nil {
			return nil, err
		}
	}

	poolConfig, err := pgxpool.ParseConfig(pgConfig.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL connection string: %w", err)
	}
	if pgConfig.MaxConns > 0 {
		poolConfig.MaxConns = pgConfig.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewAdapter(pool, pgConfig.Cipher), nil
}

func (f *Factory) GetType() string {
	return "postgres"
}
