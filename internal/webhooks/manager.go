// Package webhooks manages endpoint registrations: create, list, update,
// delete and audit history.
package webhooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"webhook-gateway/internal/common/auth"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/common/utils"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/storage"
)

const (
	DefaultRequests = 100
	DefaultPeriod   = "minute"

	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000

	maskedSecret = "***"
)

var fieldValidator = validator.New()

// SecurityInput is the writable part of an endpoint's security block.
// Nil fields keep their default (create) or current value (update).
type SecurityInput struct {
	IPWhitelist []string          `json:"ipWhitelist"`
	RateLimit   *models.RateLimit `json:"rateLimit"`
	SSLRequired *bool             `json:"sslRequired"`
}

type CreateRequest struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	EndpointPath   string                 `json:"endpointPath"`
	IsActive       *bool                  `json:"isActive"`
	Authentication *models.Authentication `json:"authentication"`
	Security       *SecurityInput         `json:"security"`
	WorkflowConfig models.WorkflowConfig  `json:"workflowConfig"`
}

// UpdateRequest is a partial update; only non-nil fields are applied
type UpdateRequest struct {
	Name           *string                `json:"name"`
	Description    *string                `json:"description"`
	EndpointPath   *string                `json:"endpointPath"`
	IsActive       *bool                  `json:"isActive"`
	Authentication *models.Authentication `json:"authentication"`
	Security       *SecurityInput         `json:"security"`
	WorkflowConfig *models.WorkflowConfig `json:"workflowConfig"`
}

// Webhook is the management view of an endpoint: secrets masked, delivery
// URL resolved
type Webhook struct {
	models.WebhookConfig
	FullURL string `json:"fullUrl"`
}

type Manager struct {
	webhooks  storage.WebhookStore
	audit     storage.AuditStore
	validator *auth.Validator
	baseURL   string
	logger    logging.Logger
	now       func() time.Time
}

func NewManager(webhooks storage.WebhookStore, audit storage.AuditStore, validator *auth.Validator, baseURL string, logger logging.Logger) *Manager {
	if validator == nil {
		validator = auth.NewValidator()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		webhooks:  webhooks,
		audit:     audit,
		validator: validator,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger.WithFields(logging.String("component", "webhooks")),
		now:       time.Now,
	}
}

func (m *Manager) Create(ctx context.Context, req CreateRequest, createdBy string) (*Webhook, error) {
	path := normalizePath(req.EndpointPath)
	if strings.TrimSpace(req.Name) == "" || path == "" {
		return nil, errors.ValidationError("Name and endpointPath are required")
	}

	id, err := utils.NewWebhookID()
	if err != nil {
		return nil, errors.InternalError("failed to generate webhook id", err)
	}

	now := m.now().UTC()
	webhook := &models.WebhookConfig{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		EndpointPath: path,
		IsActive:     true,
		Authentication: models.Authentication{
			Method:          models.AuthNone,
			SignatureHeader: auth.DefaultSignatureHeader,
		},
		Security: models.Security{
			IPWhitelist: []string{},
			RateLimit:   models.RateLimit{Requests: DefaultRequests, Period: DefaultPeriod},
			SSLRequired: true,
		},
		WorkflowConfig: req.WorkflowConfig,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.IsActive != nil {
		webhook.IsActive = *req.IsActive
	}
	if req.Authentication != nil {
		webhook.Authentication = withAuthDefaults(*req.Authentication)
	}
	applySecurity(&webhook.Security, req.Security)

	if err := m.validate(webhook); err != nil {
		return nil, err
	}
	if err := m.webhooks.CreateWebhook(ctx, webhook); err != nil {
		return nil, err
	}

	m.logger.Info("Webhook created",
		logging.String("webhook_id", webhook.ID),
		logging.String("endpoint_path", webhook.EndpointPath),
		logging.String("auth_method", webhook.Authentication.Method),
		logging.String("created_by", createdBy))

	return m.view(webhook), nil
}

func (m *Manager) List(ctx context.Context) ([]*Webhook, error) {
	configs, err := m.webhooks.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Webhook, 0, len(configs))
	for _, c := range configs {
		out = append(out, m.view(c))
	}
	return out, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Webhook, error) {
	webhook, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.view(webhook), nil
}

func (m *Manager) Update(ctx context.Context, id string, req UpdateRequest) (*Webhook, error) {
	webhook, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		webhook.Name = *req.Name
	}
	if req.Description != nil {
		webhook.Description = *req.Description
	}
	if req.EndpointPath != nil {
		webhook.EndpointPath = normalizePath(*req.EndpointPath)
	}
	if req.IsActive != nil {
		webhook.IsActive = *req.IsActive
	}
	if req.Authentication != nil {
		webhook.Authentication = mergeAuth(webhook.Authentication, *req.Authentication)
	}
	if req.WorkflowConfig != nil {
		webhook.WorkflowConfig = *req.WorkflowConfig
	}
	applySecurity(&webhook.Security, req.Security)

	if strings.TrimSpace(webhook.Name) == "" || webhook.EndpointPath == "" {
		return nil, errors.ValidationError("Name and endpointPath are required")
	}
	if err := m.validate(webhook); err != nil {
		return nil, err
	}

	webhook.UpdatedAt = m.now().UTC()
	if err := m.webhooks.UpdateWebhook(ctx, webhook); err != nil {
		return nil, err
	}

	m.logger.Info("Webhook updated", logging.String("webhook_id", id))

	// counters are owned by the store; reread to return current values
	return m.Get(ctx, id)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.webhooks.DeleteWebhook(ctx, id); err != nil {
		return err
	}
	m.logger.Info("Webhook deleted", logging.String("webhook_id", id))
	return nil
}

// AuditLogs returns up to limit entries for id, newest first
func (m *Manager) AuditLogs(ctx context.Context, id string, limit int) ([]*models.AuditLogEntry, error) {
	if _, err := m.load(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	return m.audit.ListAudit(ctx, id, limit)
}

// FullURL is the public delivery address of an endpoint
func (m *Manager) FullURL(w *models.WebhookConfig) string {
	return fmt.Sprintf("%s/webhooks/%s/%s", m.baseURL, w.ID, w.EndpointPath)
}

func (m *Manager) load(ctx context.Context, id string) (*models.WebhookConfig, error) {
	webhook, err := m.webhooks.GetWebhook(ctx, id)
	if err != nil {
		return nil, err
	}
	if webhook == nil {
		return nil, errors.NotFoundError("Webhook not found")
	}
	return webhook, nil
}

func (m *Manager) view(w *models.WebhookConfig) *Webhook {
	out := &Webhook{WebhookConfig: *w, FullURL: m.FullURL(w)}
	out.Authentication = w.Authentication.Masked()
	return out
}

func (m *Manager) validate(w *models.WebhookConfig) error {
	if strings.Contains(w.EndpointPath, "//") {
		return errors.ValidationError("endpointPath must not contain empty segments")
	}

	method := w.Authentication.Method
	if !m.validator.IsSupported(method) {
		return errors.ValidationError(fmt.Sprintf("Unsupported authentication method %q", method)).
			WithContext("supported", m.validator.SupportedMethods())
	}

	a := w.Authentication
	switch method {
	case models.AuthBearerToken:
		if a.Token == "" {
			return errors.ValidationError("authentication.token is required for bearer_token")
		}
	case models.AuthAPIKey:
		if a.APIKey == "" {
			return errors.ValidationError("authentication.apiKey is required for api_key")
		}
	case models.AuthHMAC:
		if a.Secret == "" {
			return errors.ValidationError("authentication.secret is required for hmac")
		}
	}

	for _, entry := range w.Security.IPWhitelist {
		if err := fieldValidator.Var(strings.TrimSpace(entry), "required,ip|cidr"); err != nil {
			return errors.ValidationError(fmt.Sprintf("security.ipWhitelist entry %q is not an IP address or CIDR", entry))
		}
	}

	rl := w.Security.RateLimit
	if rl.Requests < 0 {
		return errors.ValidationError("security.rateLimit.requests must not be negative")
	}
	if rl.Requests > 0 {
		if _, err := utils.ParsePeriod(rl.Period); err != nil {
			return errors.ValidationError(err.Error())
		}
	}
	return nil
}

// normalizePath strips the slashes delivery URLs are matched without, so
// "/orders/" is stored as "orders"
func normalizePath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}

func withAuthDefaults(a models.Authentication) models.Authentication {
	if a.Method == "" {
		a.Method = models.AuthNone
	}
	if a.SignatureHeader == "" {
		a.SignatureHeader = auth.DefaultSignatureHeader
	}
	return a
}

// mergeAuth applies an authentication update. Masked values echoed back
// from a previous read keep the stored secret.
func mergeAuth(current, update models.Authentication) models.Authentication {
	keep := func(next, prev string) string {
		if next == maskedSecret {
			return prev
		}
		return next
	}
	update.Token = keep(update.Token, current.Token)
	update.APIKey = keep(update.APIKey, current.APIKey)
	update.Secret = keep(update.Secret, current.Secret)
	return withAuthDefaults(update)
}

func applySecurity(s *models.Security, in *SecurityInput) {
	if in == nil {
		return
	}
	if in.IPWhitelist != nil {
		s.IPWhitelist = in.IPWhitelist
	}
	if in.RateLimit != nil {
		s.RateLimit = *in.RateLimit
	}
	if in.SSLRequired != nil {
		s.SSLRequired = *in.SSLRequired
	}
}
