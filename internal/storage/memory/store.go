// Package memory is a process-local storage backend. It backs tests and
// single-node development runs with DATABASE_TYPE=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/storage"
)

var _ storage.Storage = (*Store)(nil)

// Store keeps every record in maps guarded by one mutex. Records are copied
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu         sync.RWMutex
	webhooks   map[string]*models.WebhookConfig
	keys       map[string]*models.APIKey
	audit      []*models.AuditLogEntry
	executions []*models.WorkflowExecution
	closed     bool
}

func New() *Store {
	return &Store{
		webhooks: make(map[string]*models.WebhookConfig),
		keys:     make(map[string]*models.APIKey),
	}
}

// Webhooks

func (s *Store) CreateWebhook(_ context.Context, webhook *models.WebhookConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.webhooks[webhook.ID]; exists {
		return errors.ConflictError(fmt.Sprintf("webhook %s already exists", webhook.ID))
	}
	for _, w := range s.webhooks {
		if w.EndpointPath == webhook.EndpointPath {
			return errors.ConflictError(fmt.Sprintf("Endpoint path %q already exists", webhook.EndpointPath))
		}
	}

	s.webhooks[webhook.ID] = cloneWebhook(webhook)
	return nil
}

func (s *Store) GetWebhook(_ context.Context, id string) (*models.WebhookConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, nil
	}
	return cloneWebhook(w), nil
}

func (s *Store) GetWebhookByPath(_ context.Context, endpointPath string) (*models.WebhookConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.webhooks {
		if w.EndpointPath == endpointPath {
			return cloneWebhook(w), nil
		}
	}
	return nil, nil
}

func (s *Store) ListWebhooks(_ context.Context) ([]*models.WebhookConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.WebhookConfig, 0, len(s.webhooks))
	for _, w := range s.webhooks {
		out = append(out, cloneWebhook(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateWebhook(_ context.Context, webhook *models.WebhookConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.webhooks[webhook.ID]
	if !ok {
		return errors.NotFoundError("Webhook not found")
	}
	for id, w := range s.webhooks {
		if id != webhook.ID && w.EndpointPath == webhook.EndpointPath {
			return errors.ConflictError(fmt.Sprintf("Endpoint path %q already exists", webhook.EndpointPath))
		}
	}

	updated := cloneWebhook(webhook)
	updated.TotalRequests = current.TotalRequests
	updated.ErrorCount = current.ErrorCount
	updated.LastTriggered = current.LastTriggered
	updated.CreatedAt = current.CreatedAt
	s.webhooks[webhook.ID] = updated
	return nil
}

func (s *Store) DeleteWebhook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[id]; !ok {
		return errors.NotFoundError("Webhook not found")
	}
	delete(s.webhooks, id)
	return nil
}

func (s *Store) IncrementRequestCount(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return errors.NotFoundError("Webhook not found")
	}
	w.TotalRequests++
	w.LastTriggered = &at
	return nil
}

func (s *Store) IncrementErrorCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return errors.NotFoundError("Webhook not found")
	}
	w.ErrorCount++
	return nil
}

// API keys

func (s *Store) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key.ID]; exists {
		return errors.ConflictError(fmt.Sprintf("API key %s already exists", key.ID))
	}
	s.keys[key.ID] = cloneKey(key)
	return nil
}

func (s *Store) GetAPIKey(_ context.Context, id string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[id]
	if !ok {
		return nil, nil
	}
	return cloneKey(k), nil
}

func (s *Store) GetAPIKeyByHash(_ context.Context, keyHash string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.keys {
		if k.KeyHash == keyHash {
			return cloneKey(k), nil
		}
	}
	return nil, nil
}

func (s *Store) ListAPIKeysByUser(_ context.Context, userID string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.APIKey, 0)
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, cloneKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) TouchAPIKey(_ context.Context, id string, lastUsed time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return errors.NotFoundError("API key not found")
	}
	k.LastUsed = &lastUsed
	return nil
}

func (s *Store) RevokeAPIKey(_ context.Context, id string, revokedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return false, errors.NotFoundError("API key not found")
	}
	if !k.IsActive {
		return false, nil
	}
	k.IsActive = false
	k.RevokedAt = &revokedAt
	return true, nil
}

// Audit log

func (s *Store) AppendAudit(_ context.Context, entry *models.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	s.audit = append(s.audit, &e)
	return nil
}

func (s *Store) ListAudit(_ context.Context, webhookID string, limit int) ([]*models.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AuditLogEntry, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].WebhookID != webhookID {
			continue
		}
		e := *s.audit[i]
		out = append(out, &e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) DeleteAuditBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.audit[:0]
	var removed int64
	for _, e := range s.audit {
		if e.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.audit = kept
	return removed, nil
}

// Executions

func (s *Store) CreateExecution(_ context.Context, execution *models.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *execution
	s.executions = append(s.executions, &e)
	return nil
}

func (s *Store) ListExecutions(_ context.Context, webhookID string, limit int) ([]*models.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.WorkflowExecution, 0)
	for i := len(s.executions) - 1; i >= 0; i-- {
		if webhookID != "" && s.executions[i].WebhookID != webhookID {
			continue
		}
		e := *s.executions[i]
		out = append(out, &e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Health(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneWebhook(w *models.WebhookConfig) *models.WebhookConfig {
	c := *w
	c.Security.IPWhitelist = copyStrings(w.Security.IPWhitelist)
	if w.WorkflowConfig.Metadata != nil {
		c.WorkflowConfig.Metadata = make(map[string]string, len(w.WorkflowConfig.Metadata))
		for k, v := range w.WorkflowConfig.Metadata {
			c.WorkflowConfig.Metadata[k] = v
		}
	}
	if w.LastTriggered != nil {
		t := *w.LastTriggered
		c.LastTriggered = &t
	}
	return &c
}

func cloneKey(k *models.APIKey) *models.APIKey {
	c := *k
	c.Permissions = copyStrings(k.Permissions)
	c.WebhookIDs = copyStrings(k.WebhookIDs)
	if k.LastUsed != nil {
		t := *k.LastUsed
		c.LastUsed = &t
	}
	if k.RevokedAt != nil {
		t := *k.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Factory registers the memory backend
type Factory struct{}

func (f *Factory) Create(storage.Config) (storage.Storage, error) {
	return New(), nil
}

func (f *Factory) GetType() string { return "memory" }

// Config selects the memory backend
type Config struct{}

func (Config) Validate() error             { return nil }
func (Config) GetType() string             { return "memory" }
func (Config) GetConnectionString() string { return "" }
