package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var configEnvVars = []string{
	"PORT", "PUBLIC_BASE_URL", "MAX_BODY_BYTES", "DATABASE_TYPE", "DATABASE_PATH",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB", "POSTGRES_USER", "POSTGRES_PASSWORD",
	"POSTGRES_SSL_MODE", "REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"RATE_LIMIT_BACKEND", "IDENTITY_PROVIDER", "JWT_SECRET", "JWT_ISSUER", "OIDC_ISSUER_URL",
	"OIDC_CLIENT_ID", "CONFIG_ENCRYPTION_KEY", "SECURITY_CIDR_MODE", "DELIVERY_REQUIRE_API_KEY",
	"TRIGGER_MODE", "BROKER_TYPE", "KAFKA_BROKERS", "SQS_QUEUE_URL", "DISPATCH_WORKERS",
	"DISPATCH_QUEUE_SIZE", "DISPATCH_MAX_ATTEMPTS", "DISPATCH_TIMEOUT", "AUDIT_RETENTION_DAYS",
	"AUDIT_PRUNE_SCHEDULE",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "local", cfg.RateLimitBackend)
	assert.Equal(t, "jwt", cfg.IdentityProvider)
	assert.Equal(t, "subnet", cfg.CIDRMode)
	assert.False(t, cfg.DeliveryRequireAPIKey)
	assert.Equal(t, "storage", cfg.TriggerMode)
	assert.Equal(t, 3, cfg.DispatchMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, 30, cfg.AuditRetentionDays)
	assert.Equal(t, "0 3 * * *", cfg.AuditPruneSchedule)
}

func TestLoad_RedisSwitchesLimiterDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDRESS", "localhost:6379")

	assert.Equal(t, "redis", Load().RateLimitBackend)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_BASE_URL", "https://hooks.example.com/")
	t.Setenv("DELIVERY_REQUIRE_API_KEY", "true")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("DISPATCH_TIMEOUT", "3s")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://hooks.example.com", cfg.PublicBaseURL)
	assert.True(t, cfg.DeliveryRequireAPIKey)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Broker.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.DispatchTimeout)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	clearEnv(t)
	t.Setenv("JWT_SECRET", testSecret)
	return Load()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Port = "70000" }, wantErr: "PORT"},
		{name: "short jwt secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: "JWT_SECRET"},
		{name: "unknown database", mutate: func(c *Config) { c.DatabaseType = "mongo" }, wantErr: "DATABASE_TYPE"},
		{name: "postgres needs host", mutate: func(c *Config) { c.DatabaseType = "postgres"; c.PostgresHost = "" }, wantErr: "POSTGRES_HOST"},
		{name: "redis limiter without redis", mutate: func(c *Config) { c.RateLimitBackend = "redis" }, wantErr: "REDIS_ADDRESS"},
		{name: "oidc needs issuer", mutate: func(c *Config) { c.IdentityProvider = "oidc" }, wantErr: "OIDC_ISSUER_URL"},
		{name: "cidr mode", mutate: func(c *Config) { c.CIDRMode = "fuzzy" }, wantErr: "SECURITY_CIDR_MODE"},
		{name: "broker mode needs type", mutate: func(c *Config) { c.TriggerMode = "broker" }, wantErr: "BROKER_TYPE"},
		{name: "sqs needs queue", mutate: func(c *Config) { c.TriggerMode = "broker"; c.Broker.Type = "sqs" }, wantErr: "SQS_QUEUE_URL"},
		{name: "bad dispatch timeout", mutate: func(c *Config) { c.DispatchTimeout = 0 }, wantErr: "DISPATCH_TIMEOUT"},
		{name: "unparseable int", mutate: func(c *Config) { c.DispatchWorkers = -1 }, wantErr: "DISPATCH_WORKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresUser: "u", PostgresPassword: "p", PostgresHost: "db",
		PostgresPort: "5432", PostgresDB: "hooks", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5432/hooks?sslmode=disable", cfg.PostgresDSN())
}
