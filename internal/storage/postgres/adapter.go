// Package postgres is the PostgreSQL storage backend built on a pgx
// connection pool. The schema is managed by golang-migrate from the embedded
// migrate/ directory.
package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/storage"
)

var _ storage.Storage = (*Adapter)(nil)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool the adapter uses
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Adapter struct {
	db     DB
	cipher *storage.SecretCipher
}

func NewAdapter(db DB, cipher *storage.SecretCipher) *Adapter {
	return &Adapter{db: db, cipher: cipher}
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.Ping(ctx)
}

func (a *Adapter) Close() error {
	a.db.Close()
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

	_, err = a.db.Exec(ctx, `INSERT INTO webhooks (`+webhookColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		w.ID, w.Name, w.Description, w.EndpointPath, w.IsActive,
		auth.Method, auth.Token, auth.APIKey, auth.Secret, auth.HeaderName, auth.SignatureHeader,
		whitelist, w.Security.RateLimit.Requests, w.Security.RateLimit.Period, w.Security.SSLRequired, workflow,
		w.TotalRequests, w.ErrorCount, w.LastTriggered, w.CreatedBy, w.CreatedAt, w.UpdatedAt,
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
	row := a.db.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = $1`, id)
	return a.scanWebhook(row)
}

func (a *Adapter) GetWebhookByPath(ctx context.Context, endpointPath string) (*models.WebhookConfig, error) {
	row := a.db.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE endpoint_path = $1`, endpointPath)
	return a.scanWebhook(row)
}

func (a *Adapter) ListWebhooks(ctx context.Context) ([]*models.WebhookConfig, error) {
	rows, err := a.db.Query(ctx, `SELECT `+webhookColumns+` FROM webhooks ORDER BY created_at DESC`)
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

	tag, err := a.db.Exec(ctx, `UPDATE webhooks SET
			name = $1, description = $2, endpoint_path = $3, is_active = $4,
			auth_method = $5, auth_token = $6, auth_api_key = $7, auth_secret = $8,
			auth_header_name = $9, auth_signature_header = $10,
			ip_whitelist = $11, rate_limit_requests = $12, rate_limit_period = $13,
			ssl_required = $14, workflow_config = $15, updated_at = $16
		WHERE id = $17`,
		w.Name, w.Description, w.EndpointPath, w.IsActive,
		auth.Method, auth.Token, auth.APIKey, auth.Secret, auth.HeaderName, auth.SignatureHeader,
		whitelist, w.Security.RateLimit.Requests, w.Security.RateLimit.Period, w.Security.SSLRequired, workflow,
		w.UpdatedAt, w.ID,
	)
	if isUniqueViolation(err) {
		return errors.ConflictError(fmt.Sprintf("Endpoint path %q already exists", w.EndpointPath))
	}
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return requireRow(tag, "Webhook not found")
}

func (a *Adapter) DeleteWebhook(ctx context.Context, id string) error {
	tag, err := a.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return requireRow(tag, "Webhook not found")
}

func (a *Adapter) IncrementRequestCount(ctx context.Context, id string, at time.Time) error {
	tag, err := a.db.Exec(ctx,
		`UPDATE webhooks SET total_requests = total_requests + 1, last_triggered = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to increment request count: %w", err)
	}
	return requireRow(tag, "Webhook not found")
}

func (a *Adapter) IncrementErrorCount(ctx context.Context, id string) error {
	tag, err := a.db.Exec(ctx, `UPDATE webhooks SET error_count = error_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment error count: %w", err)
	}
	return requireRow(tag, "Webhook not found")
}

func (a *Adapter) scanWebhook(row pgx.Row) (*models.WebhookConfig, error) {
	var (
		w         models.WebhookConfig
		whitelist []byte
		workflow  []byte
	)

	err := row.Scan(
		&w.ID, &w.Name, &w.Description, &w.EndpointPath, &w.IsActive,
		&w.Authentication.Method, &w.Authentication.Token, &w.Authentication.APIKey, &w.Authentication.Secret,
		&w.Authentication.HeaderName, &w.Authentication.SignatureHeader,
		&whitelist, &w.Security.RateLimit.Requests, &w.Security.RateLimit.Period, &w.Security.SSLRequired, &workflow,
		&w.TotalRequests, &w.ErrorCount, &w.LastTriggered, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}

	if err := json.Unmarshal(whitelist, &w.Security.IPWhitelist); err != nil {
		return nil, fmt.Errorf("failed to decode ip whitelist: %w", err)
	}
	if err := json.Unmarshal(workflow, &w.WorkflowConfig); err != nil {
		return nil, fmt.Errorf("failed to decode workflow config: %w", err)
	}

	auth, err := a.cipher.Open(w.Authentication)
	if err != nil {
		return nil, errors.InternalError("failed to decrypt webhook secrets", err)
	}
	w.Authentication = auth

	return &w, nil
}

func encodeWebhookJSON(w *models.WebhookConfig) ([]byte, []byte, error) {
	ips := w.Security.IPWhitelist
	if ips == nil {
		ips = []string{}
	}
	whitelist, err := json.Marshal(ips)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode ip whitelist: %w", err)
	}
	workflow, err := json.Marshal(w.WorkflowConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode workflow config: %w", err)
	}
	return whitelist, workflow, nil
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

	_, err = a.db.Exec(ctx, `INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		k.ID, k.KeyHash, k.KeyPrefix, k.Name, k.Description, k.UserID, permissions, k.IsActive,
		k.RateLimit.Requests, k.RateLimit.Period, webhookIDs, k.CreatedAt, k.LastUsed, k.RevokedAt,
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
	row := a.db.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	return scanAPIKey(row)
}

func (a *Adapter) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	row := a.db.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
	return scanAPIKey(row)
}

func (a *Adapter) ListAPIKeysByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	rows, err := a.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
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
	tag, err := a.db.Exec(ctx, `UPDATE api_keys SET last_used = $1 WHERE id = $2`, lastUsed, id)
	if err != nil {
		return fmt.Errorf("failed to update api key last used: %w", err)
	}
	return requireRow(tag, "API key not found")
}

func (a *Adapter) RevokeAPIKey(ctx context.Context, id string, revokedAt time.Time) (bool, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE api_keys SET is_active = FALSE, revoked_at = $1 WHERE id = $2 AND is_active = TRUE`, revokedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to revoke api key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := a.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM api_keys WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to look up api key: %w", err)
	}
	if !exists {
		return false, errors.NotFoundError("API key not found")
	}
	return false, nil
}

func scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var (
		k           models.APIKey
		permissions []byte
		webhookIDs  []byte
	)

	err := row.Scan(&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &k.Description, &k.UserID, &permissions, &k.IsActive,
		&k.RateLimit.Requests, &k.RateLimit.Period, &webhookIDs, &k.CreatedAt, &k.LastUsed, &k.RevokedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}

	if err := json.Unmarshal(permissions, &k.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	if err := json.Unmarshal(webhookIDs, &k.WebhookIDs); err != nil {
		return nil, fmt.Errorf("failed to decode webhook ids: %w", err)
	}
	return &k, nil
}

// Audit log

func (a *Adapter) AppendAudit(ctx context.Context, e *models.AuditLogEntry) error {
	_, err := a.db.Exec(ctx, `INSERT INTO audit_logs
		(id, webhook_id, timestamp, status, ip_address, error, response_time_ms, user_agent, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.WebhookID, e.Timestamp, e.Status, e.IPAddress, e.Error, e.ResponseTime, e.UserAgent, nullJSON(e.Payload),
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
	rows, err := a.db.Query(ctx, `SELECT id, webhook_id, timestamp, status, ip_address, error,
			response_time_ms, user_agent, payload
		FROM audit_logs WHERE webhook_id = $1 ORDER BY timestamp DESC LIMIT $2`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		var (
			e       models.AuditLogEntry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.WebhookID, &e.Timestamp, &e.Status, &e.IPAddress, &e.Error,
			&e.ResponseTime, &e.UserAgent, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (a *Adapter) DeleteAuditBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := a.db.Exec(ctx, `DELETE FROM audit_logs WHERE timestamp < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Executions

func (a *Adapter) CreateExecution(ctx context.Context, e *models.WorkflowExecution) error {
	_, err := a.db.Exec(ctx, `INSERT INTO workflow_executions
		(id, webhook_id, workflow_id, status, trigger_type, source_ip, payload, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.WebhookID, e.WorkflowID, e.Status, e.TriggerType, e.SourceIP, nullJSON(e.Payload), e.Error, e.CreatedAt,
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
	rows, err := a.db.Query(ctx, `SELECT id, webhook_id, workflow_id, status, trigger_type, source_ip,
			payload, error, created_at
		FROM workflow_executions WHERE webhook_id = $1 ORDER BY created_at DESC LIMIT $2`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.WorkflowExecution, 0)
	for rows.Next() {
		var (
			e       models.WorkflowExecution
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.WebhookID, &e.WorkflowID, &e.Status, &e.TriggerType, &e.SourceIP,
			&payload, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func requireRow(tag pgconn.CommandTag, notFound string) error {
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError(notFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
