// Package sqlite is the embedded storage backend built on database/sql and
// mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/storage"
)

var _ storage.Storage = (*Adapter)(nil)

type Adapter struct {
	db     *sql.DB
	config *Config
	cipher *storage.SecretCipher
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if config.inMemory() {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
		cipher: config.Cipher,
	}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS webhooks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			endpoint_path TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			auth_method TEXT NOT NULL DEFAULT 'none',
			auth_token TEXT NOT NULL DEFAULT '',
			auth_api_key TEXT NOT NULL DEFAULT '',
			auth_secret TEXT NOT NULL DEFAULT '',
			auth_header_name TEXT NOT NULL DEFAULT '',
			auth_signature_header TEXT NOT NULL DEFAULT '',
			ip_whitelist TEXT NOT NULL DEFAULT '[]',
			rate_limit_requests INTEGER NOT NULL DEFAULT 0,
			rate_limit_period TEXT NOT NULL DEFAULT '',
			ssl_required BOOLEAN NOT NULL DEFAULT 1,
			workflow_config TEXT NOT NULL DEFAULT '{}',
			total_requests INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			last_triggered DATETIME,
			created_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			key_hash TEXT NOT NULL UNIQUE,
			key_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			permissions TEXT NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			rate_limit_requests INTEGER NOT NULL DEFAULT 0,
			rate_limit_period TEXT NOT NULL DEFAULT '',
			webhook_ids TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			last_used DATETIME,
			revoked_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			webhook_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			status TEXT NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			user_agent TEXT NOT NULL DEFAULT '',
			payload TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_executions (
			id TEXT PRIMARY KEY,
			webhook_id TEXT NOT NULL,
			workflow_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			trigger_type TEXT NOT NULL DEFAULT '',
			source_ip TEXT NOT NULL DEFAULT '',
			payload TEXT,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON api_keys(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_webhook_ts ON audit_logs(webhook_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_webhook_id ON workflow_executions(webhook_id)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Webhooks

const webhookColumns = `id, name, description, endpoint_path, is_active,
	auth_method, auth_token, auth_api_key, auth_secret, auth_header_name, auth_signature_header,
	ip_whitelist, rate_limit_requests, rate_limit_period, ssl_required, workflow_config,
	total_requests, error_count, last_triggered, created_by, created_at, updated_at`

func (a *Adapter) CreateWebhook(ctx context.Context, w *models.WebhookConfig) error {
	auth, err := a.cipher.Seal(w.Authentication)
	if err != nil {
		return errors.InternalError("failed to encrypt webhook secrets", err)
	}
	whitelist, workflow, err := encodeWebhookJSON(w)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `INSERT INTO webhooks (`+webhookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.Description, w.EndpointPath, w.IsActive,
		auth.Method, auth.Token, auth.APIKey, auth.Secret, auth.HeaderName, auth.SignatureHeader,
		whitelist, w.Security.RateLimit.Requests, w.Security.RateLimit.Period, w.Security.SSLRequired, workflow,
		w.TotalRequests, w.ErrorCount, w.LastTriggered, w.CreatedBy, w.CreatedAt.UTC(), w.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return errors.ConflictError(fmt.Sprintf("Endpoint path %q already exists", w.EndpointPath))
	}
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

func (a *Adapter) GetWebhook(ctx context.Context, id string) (*models.WebhookConfig, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id)
	return a.scanWebhook(row)
}

func (a *Adapter) GetWebhookByPath(ctx context.Context, endpointPath string) (*models.WebhookConfig, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE endpoint_path = ?`, endpointPath)
	return a.scanWebhook(row)
}

func (a *Adapter) ListWebhooks(ctx context.Context) ([]*models.WebhookConfig, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT `+webhookColumns+` FROM webhooks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var out []*models.WebhookConfig
	for rows.Next() {
		w, err := a.scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (a *Adapter) UpdateWebhook(ctx context.Context, w *models.WebhookConfig) error {
	auth, err := a.cipher.Seal(w.Authentication)
	if err != nil {
		return errors.InternalError("failed to encrypt webhook secrets", err)
	}
	whitelist, workflow, err := encodeWebhookJSON(w)
	if err != nil {
		return err
	}

	result, err := a.db.ExecContext(ctx, `UPDATE webhooks SET
			name = ?, description = ?, endpoint_path = ?, is_active = ?,
			auth_method = ?, auth_token = ?, auth_api_key = ?, auth_secret = ?, auth_header_name = ?, auth_signature_header = ?,
			ip_whitelist = ?, rate_limit_requests = ?, rate_limit_period = ?, ssl_required = ?, workflow_config = ?,
			updated_at = ?
		WHERE id = ?`,
		w.Name, w.Description, w.EndpointPath, w.IsActive,
		auth.Method, auth.Token, auth.APIKey, auth.Secret, auth.HeaderName, auth.SignatureHeader,
		whitelist, w.Security.RateLimit.Requests, w.Security.RateLimit.Period, w.Security.SSLRequired, workflow,
		w.UpdatedAt.UTC(), w.ID,
	)
	if isUniqueViolation(err) {
		return errors.ConflictError(fmt.Sprintf("Endpoint path %q already exists", w.EndpointPath))
	}
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return requireRow(result, "Webhook not found")
}

func (a *Adapter) DeleteWebhook(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return requireRow(result, "Webhook not found")
}

func (a *Adapter) IncrementRequestCount(ctx context.Context, id string, at time.Time) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE webhooks SET total_requests = total_requests + 1, last_triggered = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to increment request count: %w", err)
	}
	return requireRow(result, "Webhook not found")
}

func (a *Adapter) IncrementErrorCount(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, `UPDATE webhooks SET error_count = error_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment error count: %w", err)
	}
	return requireRow(result, "Webhook not found")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (a *Adapter) scanWebhook(row scanner) (*models.WebhookConfig, error) {
	var (
		w             models.WebhookConfig
		whitelist     string
		workflow      string
		lastTriggered sql.NullTime
	)

	err := row.Scan(
		&w.ID, &w.Name, &w.Description, &w.EndpointPath, &w.IsActive,
		&w.Authentication.Method, &w.Authentication.Token, &w.Authentication.APIKey, &w.Authentication.Secret,
		&w.Authentication.HeaderName, &w.Authentication.SignatureHeader,
		&whitelist, &w.Security.RateLimit.Requests, &w.Security.RateLimit.Period, &w.Security.SSLRequired, &workflow,
		&w.TotalRequests, &w.ErrorCount, &lastTriggered, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}

	if err := json.Unmarshal([]byte(whitelist), &w.Security.IPWhitelist); err != nil {
		return nil, fmt.Errorf("failed to decode ip whitelist: %w", err)
	}
	if err := json.Unmarshal([]byte(workflow), &w.WorkflowConfig); err != nil {
		return nil, fmt.Errorf("failed to decode workflow config: %w", err)
	}
	if lastTriggered.Valid {
		t := lastTriggered.Time
		w.LastTriggered = &t
	}

	auth, err := a.cipher.Open(w.Authentication)
	if err != nil {
		return nil, errors.InternalError("failed to decrypt webhook secrets", err)
	}
	w.Authentication = auth

	return &w, nil
}

func encodeWebhookJSON(w *models.WebhookConfig) (string, string, error) {
	ips := w.Security.IPWhitelist
	if ips == nil {
		ips = []string{}
	}
	whitelist, err := json.Marshal(ips)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode ip whitelist: %w", err)
	}
	workflow, err := json.Marshal(w.WorkflowConfig)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode workflow config: %w", err)
	}
	return string(whitelist), string(workflow), nil
}

// API keys

const apiKeyColumns = `id, key_hash, key_prefix, name, description, user_id, permissions, is_active,
	rate_limit_requests, rate_limit_period, webhook_ids, created_at, last_used, revoked_at`

func (a *Adapter) CreateAPIKey(ctx context.Context, k *models.APIKey) error {
	permissions, err := json.Marshal(nonNil(k.Permissions))
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}
	webhookIDs, err := json.Marshal(nonNil(k.WebhookIDs))
	if err != nil {
		return fmt.Errorf("failed to encode webhook ids: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.KeyHash, k.KeyPrefix, k.Name, k.Description, k.UserID, string(permissions), k.IsActive,
		k.RateLimit.Requests, k.RateLimit.Period, string(webhookIDs), k.CreatedAt.UTC(), k.LastUsed, k.RevokedAt,
	)
	if isUniqueViolation(err) {
		return errors.ConflictError(fmt.Sprintf("API key %s already exists", k.ID))
	}
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func (a *Adapter) GetAPIKey(ctx context.Context, id string) (*models.APIKey, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ?`, id)
	return scanAPIKey(row)
}

func (a *Adapter) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ?`, keyHash)
	return scanAPIKey(row)
}

func (a *Adapter) ListAPIKeysByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	out := make([]*models.APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (a *Adapter) TouchAPIKey(ctx context.Context, id string, lastUsed time.Time) error {
	result, err := a.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE id = ?`, lastUsed.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update api key last used: %w", err)
	}
	return requireRow(result, "API key not found")
}

func (a *Adapter) RevokeAPIKey(ctx context.Context, id string, revokedAt time.Time) (bool, error) {
	result, err := a.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = 0, revoked_at = ? WHERE id = ? AND is_active = 1`, revokedAt.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up api key: %w", err)
	}
	if exists == 0 {
		return false, errors.NotFoundError("API key not found")
	}
	return false, nil
}

func scanAPIKey(row scanner) (*models.APIKey, error) {
	var (
		k           models.APIKey
		permissions string
		webhookIDs  string
		lastUsed    sql.NullTime
		revokedAt   sql.NullTime
	)

	err := row.Scan(&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &k.Description, &k.UserID, &permissions, &k.IsActive,
		&k.RateLimit.Requests, &k.RateLimit.Period, &webhookIDs, &k.CreatedAt, &lastUsed, &revokedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}

	if err := json.Unmarshal([]byte(permissions), &k.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	if err := json.Unmarshal([]byte(webhookIDs), &k.WebhookIDs); err != nil {
		return nil, fmt.Errorf("failed to decode webhook ids: %w", err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsed = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		k.RevokedAt = &t
	}
	return &k, nil
}

// Audit log

func (a *Adapter) AppendAudit(ctx context.Context, e *models.AuditLogEntry) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO audit_logs
		(id, webhook_id, timestamp, status, ip_address, error, response_time_ms, user_agent, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WebhookID, e.Timestamp.UTC(), e.Status, e.IPAddress, e.Error, e.ResponseTime, e.UserAgent, nullJSON(e.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (a *Adapter) ListAudit(ctx context.Context, webhookID string, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `SELECT id, webhook_id, timestamp, status, ip_address, error,
			response_time_ms, user_agent, payload
		FROM audit_logs WHERE webhook_id = ? ORDER BY timestamp DESC LIMIT ?`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		var (
			e       models.AuditLogEntry
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WebhookID, &e.Timestamp, &e.Status, &e.IPAddress, &e.Error,
			&e.ResponseTime, &e.UserAgent, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (a *Adapter) DeleteAuditBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	return result.RowsAffected()
}

// Executions

func (a *Adapter) CreateExecution(ctx context.Context, e *models.WorkflowExecution) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO workflow_executions
		(id, webhook_id, workflow_id, status, trigger_type, source_ip, payload, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WebhookID, e.WorkflowID, e.Status, e.TriggerType, e.SourceIP, nullJSON(e.Payload), e.Error, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

func (a *Adapter) ListExecutions(ctx context.Context, webhookID string, limit int) ([]*models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `SELECT id, webhook_id, workflow_id, status, trigger_type, source_ip,
			payload, error, created_at
		FROM workflow_executions WHERE webhook_id = ? ORDER BY created_at DESC LIMIT ?`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.WorkflowExecution, 0)
	for rows.Next() {
		var (
			e       models.WorkflowExecution
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WebhookID, &e.WorkflowID, &e.Status, &e.TriggerType, &e.SourceIP,
			&payload, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func requireRow(result sql.Result, notFound string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundError(notFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
