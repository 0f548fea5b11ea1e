// Package config loads gateway settings from the environment.
//
// Load never fails; Validate reports the first setting that is missing or
// malformed. A .env file in the working directory is read by app.Run before
// Load is called.
//
// Environment variables (defaults in brackets):
//
//	PORT [8080], PUBLIC_BASE_URL [http://localhost:8080], MAX_BODY_BYTES [1048576]
//	TLS_CERT_FILE, TLS_KEY_FILE (serve HTTPS when both are set)
//	DATABASE_TYPE sqlite|postgres|memory [sqlite], DATABASE_PATH [./webhook_gateway.db]
//	POSTGRES_HOST/PORT/DB/USER/PASSWORD/SSL_MODE
//	REDIS_ADDRESS [""], REDIS_PASSWORD, REDIS_DB [0], REDIS_POOL_SIZE [10]
//	RATE_LIMIT_BACKEND redis|local [local, redis when REDIS_ADDRESS is set]
//	IDENTITY_PROVIDER jwt|oidc [jwt], JWT_SECRET, JWT_ISSUER, OIDC_ISSUER_URL, OIDC_CLIENT_ID
//	CONFIG_ENCRYPTION_KEY, SECURITY_CIDR_MODE subnet|prefix [subnet]
//	DELIVERY_REQUIRE_API_KEY [false]
//	TRIGGER_MODE storage|broker [storage], BROKER_TYPE redis|rabbitmq|sqs|sns|gcp|kafka
//	DISPATCH_WORKERS [4], DISPATCH_QUEUE_SIZE [1000], DISPATCH_MAX_ATTEMPTS [3], DISPATCH_TIMEOUT [10s]
//	AUDIT_RETENTION_DAYS [30], AUDIT_PRUNE_SCHEDULE ["0 3 * * *"]
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all gateway settings
type Config struct {
	Port          string
	PublicBaseURL string
	MaxBodyBytes  int64
	TLSCertFile   string
	TLSKeyFile    string

	// Storage
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis backs rate-limit windows, the redis broker and the prune lock
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	RateLimitBackend string

	// Identity verification for management routes
	IdentityProvider string
	JWTSecret        string
	JWTIssuer        string
	OIDCIssuerURL    string
	OIDCClientID     string

	EncryptionKey         string
	CIDRMode              string
	DeliveryRequireAPIKey bool

	// Workflow dispatch
	TriggerMode         string
	Broker              BrokerConfig
	DispatchWorkers     int
	DispatchQueueSize   int
	DispatchMaxAttempts int
	DispatchTimeout     time.Duration

	AuditRetentionDays int
	AuditPruneSchedule string
}

// BrokerConfig selects and configures the broker used when TRIGGER_MODE=broker
type BrokerConfig struct {
	Type string

	// redis streams
	RedisStream string

	// rabbitmq
	RabbitMQURL      string
	RabbitMQQueue    string
	RabbitMQExchange string
	RabbitMQPoolSize int

	// aws
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	SQSQueueURL        string
	SNSTopicARN        string

	// gcp
	GCPProjectID       string
	GCPTopicID         string
	GCPCredentialsFile string

	// kafka
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaClientID string
}

// Load reads the configuration from environment variables
func Load() *Config {
	redisAddr := getEnv("REDIS_ADDRESS", "")
	defaultLimiter := "local"
	if redisAddr != "" {
		defaultLimiter = "redis"
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		MaxBodyBytes:  int64(getIntEnv("MAX_BODY_BYTES", 1<<20)),
		TLSCertFile:   getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:    getEnv("TLS_KEY_FILE", ""),

		DatabaseType:     strings.ToLower(getEnv("DATABASE_TYPE", "sqlite")),
		DatabasePath:     getEnv("DATABASE_PATH", "./webhook_gateway.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "webhook_gateway"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  redisAddr,
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		RateLimitBackend: strings.ToLower(getEnv("RATE_LIMIT_BACKEND", defaultLimiter)),

		IdentityProvider: strings.ToLower(getEnv("IDENTITY_PROVIDER", "jwt")),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", ""),
		OIDCIssuerURL:    getEnv("OIDC_ISSUER_URL", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),

		EncryptionKey:         getEnv("CONFIG_ENCRYPTION_KEY", ""),
		CIDRMode:              strings.ToLower(getEnv("SECURITY_CIDR_MODE", "subnet")),
		DeliveryRequireAPIKey: getBoolEnv("DELIVERY_REQUIRE_API_KEY", false),

		TriggerMode: strings.ToLower(getEnv("TRIGGER_MODE", "storage")),
		Broker: BrokerConfig{
			Type:               strings.ToLower(getEnv("BROKER_TYPE", "")),
			RedisStream:        getEnv("BROKER_REDIS_STREAM", "workflow-events"),
			RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
			RabbitMQQueue:      getEnv("RABBITMQ_QUEUE", "workflow-events"),
			RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", ""),
			RabbitMQPoolSize:   getIntEnv("RABBITMQ_POOL_SIZE", 2),
			AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
			AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			SQSQueueURL:        getEnv("SQS_QUEUE_URL", ""),
			SNSTopicARN:        getEnv("SNS_TOPIC_ARN", ""),
			GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
			GCPTopicID:         getEnv("GCP_TOPIC_ID", ""),
			GCPCredentialsFile: getEnv("GCP_CREDENTIALS_FILE", ""),
			KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			KafkaTopic:         getEnv("KAFKA_TOPIC", "workflow-events"),
			KafkaClientID:      getEnv("KAFKA_CLIENT_ID", "webhook-gateway"),
		},
		DispatchWorkers:     getIntEnv("DISPATCH_WORKERS", 4),
		DispatchQueueSize:   getIntEnv("DISPATCH_QUEUE_SIZE", 1000),
		DispatchMaxAttempts: getIntEnv("DISPATCH_MAX_ATTEMPTS", 3),
		DispatchTimeout:     getDurationEnv("DISPATCH_TIMEOUT", 10*time.Second),

		AuditRetentionDays: getIntEnv("AUDIT_RETENTION_DAYS", 30),
		AuditPruneSchedule: getEnv("AUDIT_PRUNE_SCHEDULE", "0 3 * * *"),
	}
}

// Validate checks required settings and value ranges
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}
	if c.MaxBodyBytes < 1 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	switch c.DatabaseType {
	case "sqlite", "memory":
	case "postgres", "postgresql":
		if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite', 'postgres' or 'memory'")
	}

	if c.RedisAddress != "" {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	switch c.RateLimitBackend {
	case "local":
	case "redis":
		if c.RedisAddress == "" {
			return fmt.Errorf("RATE_LIMIT_BACKEND=redis requires REDIS_ADDRESS")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be 'redis' or 'local'")
	}

	switch c.IdentityProvider {
	case "jwt":
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
		}
	case "oidc":
		if c.OIDCIssuerURL == "" || c.OIDCClientID == "" {
			return fmt.Errorf("OIDC_ISSUER_URL and OIDC_CLIENT_ID are required when IDENTITY_PROVIDER=oidc")
		}
	default:
		return fmt.Errorf("IDENTITY_PROVIDER must be 'jwt' or 'oidc'")
	}

	if c.CIDRMode != "subnet" && c.CIDRMode != "prefix" {
		return fmt.Errorf("SECURITY_CIDR_MODE must be 'subnet' or 'prefix'")
	}

	switch c.TriggerMode {
	case "storage":
	case "broker":
		if err := c.Broker.Validate(c.RedisAddress); err != nil {
			return err
		}
	default:
		return fmt.Errorf("TRIGGER_MODE must be 'storage' or 'broker'")
	}

	if c.DispatchWorkers < 1 || c.DispatchQueueSize < 1 || c.DispatchMaxAttempts < 1 {
		return fmt.Errorf("DISPATCH_WORKERS, DISPATCH_QUEUE_SIZE and DISPATCH_MAX_ATTEMPTS must be positive")
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("DISPATCH_TIMEOUT must be a positive duration")
	}
	if c.AuditRetentionDays < 0 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must not be negative")
	}

	return nil
}

// Validate checks the settings required by the selected broker type
func (b BrokerConfig) Validate(redisAddress string) error {
	switch b.Type {
	case "redis":
		if redisAddress == "" {
			return fmt.Errorf("BROKER_TYPE=redis requires REDIS_ADDRESS")
		}
	case "rabbitmq":
		if b.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for BROKER_TYPE=rabbitmq")
		}
	case "sqs":
		if b.SQSQueueURL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required for BROKER_TYPE=sqs")
		}
	case "sns":
		if b.SNSTopicARN == "" {
			return fmt.Errorf("SNS_TOPIC_ARN is required for BROKER_TYPE=sns")
		}
	case "gcp":
		if b.GCPProjectID == "" || b.GCPTopicID == "" {
			return fmt.Errorf("GCP_PROJECT_ID and GCP_TOPIC_ID are required for BROKER_TYPE=gcp")
		}
	case "kafka":
		if len(b.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for BROKER_TYPE=kafka")
		}
	default:
		return fmt.Errorf("BROKER_TYPE must be one of redis, rabbitmq, sqs, sns, gcp, kafka")
	}
	return nil
}

// PostgresDSN builds a connection string for pgx
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for values that do not parse so Validate rejects them
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
