// Package storage defines the persistence contracts of the gateway and a
// registry of backends. Backends live in the memory, sqlite and postgres
// subpackages.
//
// Lookups return (nil, nil) when the record does not exist. Counters are
// incremented inside the store, never read-modified-written by callers.
package storage

import (
	"context"
	"time"

	"webhook-gateway/internal/models"
)

// WebhookStore persists endpoint configurations
type WebhookStore interface {
	// CreateWebhook fails with a conflict error when the endpoint path is taken
	CreateWebhook(ctx context.Context, webhook *models.WebhookConfig) error
	GetWebhook(ctx context.Context, id string) (*models.WebhookConfig, error)
	GetWebhookByPath(ctx context.Context, endpointPath string) (*models.WebhookConfig, error)
	ListWebhooks(ctx context.Context) ([]*models.WebhookConfig, error)
	// UpdateWebhook replaces the mutable fields; counters are left alone
	UpdateWebhook(ctx context.Context, webhook *models.WebhookConfig) error
	DeleteWebhook(ctx context.Context, id string) error

	// IncrementRequestCount adds one to totalRequests and stamps lastTriggered
	IncrementRequestCount(ctx context.Context, id string, at time.Time) error
	IncrementErrorCount(ctx context.Context, id string) error
}

// APIKeyStore persists API key records. The plaintext key never reaches it.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKey(ctx context.Context, id string) (*models.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	// ListAPIKeysByUser returns the user's keys, newest first
	ListAPIKeysByUser(ctx context.Context, userID string) ([]*models.APIKey, error)
	TouchAPIKey(ctx context.Context, id string, lastUsed time.Time) error
	// RevokeAPIKey flips an active key to revoked. It reports false when the
	// key was already revoked, leaving the record untouched.
	RevokeAPIKey(ctx context.Context, id string, revokedAt time.Time) (bool, error)
}

// AuditStore is the append-only delivery log
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error
	// ListAudit returns the newest entries for a webhook first
	ListAudit(ctx context.Context, webhookID string, limit int) ([]*models.AuditLogEntry, error)
	DeleteAuditBefore(ctx context.Context, before time.Time) (int64, error)
}

// ExecutionStore records workflow runs started by admitted deliveries
type ExecutionStore interface {
	CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ListExecutions(ctx context.Context, webhookID string, limit int) ([]*models.WorkflowExecution, error)
}

// Storage is implemented by every backend
type Storage interface {
	WebhookStore
	APIKeyStore
	AuditStore
	ExecutionStore

	Health(ctx context.Context) error
	Close() error
}

// Config is backend-specific connection configuration
type Config interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

// Factory builds a backend from its configuration
type Factory interface {
	Create(config Config) (Storage, error)
	GetType() string
}
