package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webhook-gateway/internal/common/auth"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/common/utils"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/security"
	"webhook-gateway/internal/storage"
)

// Delivery response messages
const (
	MsgAccepted       = "Webhook received and processing started"
	MsgNotFound       = "Webhook not found"
	MsgInactive       = "Webhook is inactive"
	MsgAuthFailed     = "Authentication failed"
	MsgProcessFailed  = "Webhook processing failed"
	MsgInvalidURL     = "Invalid webhook URL format"
	MsgBodyTooLarge   = "Request body too large"
	MsgBodyUnreadable = "Failed to read request body"

	deliveryPathFormat = "/webhooks/{webhookId}/{endpointPath}"
	auditTimeout       = 5 * time.Second
)

// DefaultMaxBodyBytes caps a delivery body when no limit is configured
const DefaultMaxBodyBytes = 1 << 20

// SecurityValidator runs the IP and quota checks for a delivery
type SecurityValidator interface {
	Validate(ctx context.Context, config *models.WebhookConfig, clientIP string) security.Result
}

// Dispatcher hands an admitted delivery to the workflow side without
// blocking the response
type Dispatcher interface {
	Dispatch(webhook *models.WebhookConfig, payload json.RawMessage, sourceIP string) bool
}

// DeliveryResponse is the body of an admitted delivery
type DeliveryResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	WebhookID string    `json:"webhookId"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookHandlerConfig wires the delivery pipeline
type WebhookHandlerConfig struct {
	Webhooks     storage.WebhookStore
	Audit        storage.AuditStore
	Security     SecurityValidator
	Validator    *auth.Validator
	Dispatcher   Dispatcher
	Metrics      *metrics.Collector
	Logger       logging.Logger
	MaxBodyBytes int64
}

// WebhookHandler admits inbound deliveries. Each step runs only when the
// previous one passed: lookup, path match, active check, security, auth,
// admit, dispatch. Every attempt that names a webhook is audited.
type WebhookHandler struct {
	webhooks     storage.WebhookStore
	audit        storage.AuditStore
	security     SecurityValidator
	validator    *auth.Validator
	dispatcher   Dispatcher
	metrics      *metrics.Collector
	logger       logging.Logger
	maxBodyBytes int64
	now          func() time.Time
}

func NewWebhookHandler(cfg WebhookHandlerConfig) *WebhookHandler {
	if cfg.Validator == nil {
		cfg.Validator = auth.NewValidator()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &WebhookHandler{
		webhooks:     cfg.Webhooks,
		audit:        cfg.Audit,
		security:     cfg.Security,
		validator:    cfg.Validator,
		dispatcher:   cfg.Dispatcher,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.WithFields(logging.String("component", "webhook_handler")),
		maxBodyBytes: cfg.MaxBodyBytes,
		now:          time.Now,
	}
}

// delivery carries the state of one admission attempt
type delivery struct {
	start     time.Time
	webhookID string
	webhook   *models.WebhookConfig
	clientIP  string
	userAgent string
	body      []byte
	headers   map[string]string
}

// rejection ends a delivery early. status and body go to the client, reason
// to the audit log.
type rejection struct {
	status  int
	body    interface{}
	reason  string
	outcome string
	// counted rejections add one to the endpoint's error counter
	counted bool
}

// ParseDeliveryPath splits /webhooks/{webhookId}/{endpointPath...}. The
// endpoint path may itself contain slashes.
func ParseDeliveryPath(path string) (webhookID, endpointPath string, ok bool) {
	rest := strings.TrimPrefix(path, "/webhooks/")
	if rest == path {
		return "", "", false
	}
	webhookID, endpointPath, found := strings.Cut(rest, "/")
	endpointPath = strings.Trim(endpointPath, "/")
	if !found || webhookID == "" || endpointPath == "" {
		return "", "", false
	}
	return webhookID, endpointPath, true
}

// HandleDelivery receives a webhook call
// @Summary Deliver a webhook
// @Description Admits a delivery for a registered endpoint and starts its workflow
// @Tags delivery
// @Accept json,plain
// @Produce json
// @Param webhookId path string true "Webhook ID"
// @Param endpointPath path string true "Endpoint path"
// @Success 200 {object} DeliveryResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /webhooks/{webhookId}/{endpointPath} [post]
func (h *WebhookHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	d := &delivery{
		start:     h.now(),
		clientIP:  ClientIP(r),
		userAgent: r.UserAgent(),
	}

	webhookID, endpointPath, ok := ParseDeliveryPath(r.URL.Path)
	if !ok {
		h.metrics.Delivery(metrics.OutcomeNotFound)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":    MsgInvalidURL,
			"expected": deliveryPathFormat,
			"received": r.URL.Path,
		})
		return
	}
	d.webhookID = webhookID

	defer func() {
		if rec := recover(); rec != nil {
			h.fail(r.Context(), w, d, fmt.Errorf("panic: %v", rec))
		}
	}()

	rej, err := h.admit(r, w, d, endpointPath)
	if err != nil {
		h.fail(r.Context(), w, d, err)
		return
	}
	if rej != nil {
		h.reject(r.Context(), w, d, rej)
		return
	}

	if h.dispatcher != nil {
		h.dispatcher.Dispatch(d.webhook, payloadJSON(d.body), d.clientIP)
	}

	h.record(r.Context(), d, models.AuditSuccess, "")
	h.metrics.Delivery(metrics.OutcomeAccepted)

	writeJSON(w, http.StatusOK, DeliveryResponse{
		Success:   true,
		Message:   MsgAccepted,
		WebhookID: d.webhookID,
		Timestamp: h.now().UTC(),
	})
}

// admit runs the checks up to and including the request counter. A
// rejection is an expected refusal; an error is a fault.
func (h *WebhookHandler) admit(r *http.Request, w http.ResponseWriter, d *delivery, endpointPath string) (*rejection, error) {
	ctx := r.Context()

	webhook, err := h.webhooks.GetWebhook(ctx, d.webhookID)
	if err != nil {
		return nil, fmt.Errorf("lookup webhook: %w", err)
	}
	if webhook == nil || webhook.EndpointPath != endpointPath {
		return &rejection{
			status:  http.StatusNotFound,
			body:    ErrorResponse{Error: MsgNotFound},
			reason:  MsgNotFound,
			outcome: metrics.OutcomeNotFound,
		}, nil
	}
	d.webhook = webhook

	if !webhook.IsActive {
		return &rejection{
			status:  http.StatusGone,
			body:    ErrorResponse{Error: MsgInactive},
			reason:  MsgInactive,
			outcome: metrics.OutcomeInactive,
		}, nil
	}

	if h.security != nil {
		if res := h.security.Validate(ctx, webhook, d.clientIP); !res.Valid {
			return &rejection{
				status:  res.Status,
				body:    ErrorResponse{Error: res.Error},
				reason:  res.Error,
				outcome: metrics.OutcomeSecurity,
				counted: true,
			}, nil
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	d.headers = SanitizeHeaders(r.Header, webhook.Authentication)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return &rejection{
				status:  http.StatusRequestEntityTooLarge,
				body:    ErrorResponse{Error: MsgBodyTooLarge},
				reason:  MsgBodyTooLarge,
				outcome: metrics.OutcomeError,
				counted: true,
			}, nil
		}
		return &rejection{
			status:  http.StatusBadRequest,
			body:    ErrorResponse{Error: MsgBodyUnreadable},
			reason:  MsgBodyUnreadable,
			outcome: metrics.OutcomeError,
			counted: true,
		}, nil
	}
	d.body = body

	res := h.validator.Validate(webhook.Authentication, auth.Request{Header: r.Header, RawBody: body})
	if !res.Valid {
		return &rejection{
			status:  http.StatusUnauthorized,
			body:    ErrorResponse{Error: MsgAuthFailed},
			reason:  res.Error,
			outcome: metrics.OutcomeAuth,
			counted: true,
		}, nil
	}

	if err := h.webhooks.IncrementRequestCount(ctx, webhook.ID, h.now().UTC()); err != nil {
		return nil, fmt.Errorf("increment request count: %w", err)
	}
	return nil, nil
}

func (h *WebhookHandler) reject(ctx context.Context, w http.ResponseWriter, d *delivery, rej *rejection) {
	if rej.counted {
		h.countError(ctx, d.webhookID)
	}
	h.record(ctx, d, models.AuditError, rej.reason)
	h.metrics.Delivery(rej.outcome)

	h.logger.WithContext(ctx).Info("Delivery rejected",
		logging.String("webhook_id", d.webhookID),
		logging.String("client_ip", d.clientIP),
		logging.Int("status", rej.status),
		logging.String("reason", rej.reason))

	writeJSON(w, rej.status, rej.body)
}

func (h *WebhookHandler) fail(ctx context.Context, w http.ResponseWriter, d *delivery, err error) {
	h.logger.WithContext(ctx).Error("Delivery processing failed", err,
		logging.String("webhook_id", d.webhookID))

	if d.webhook != nil {
		h.countError(ctx, d.webhookID)
	}
	h.record(ctx, d, models.AuditError, MsgProcessFailed)
	h.metrics.Delivery(metrics.OutcomeError)

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: MsgProcessFailed})
}

func (h *WebhookHandler) countError(ctx context.Context, webhookID string) {
	if err := h.webhooks.IncrementErrorCount(ctx, webhookID); err != nil {
		h.logger.Warn("Failed to increment error count",
			logging.String("webhook_id", webhookID), logging.Err(err))
	}
}

// record appends the audit entry. It outlives a cancelled request so a
// client hanging up does not erase the attempt.
func (h *WebhookHandler) record(ctx context.Context, d *delivery, status, reason string) {
	if h.audit == nil {
		return
	}

	entry := &models.AuditLogEntry{
		ID:           utils.NewAuditID(),
		WebhookID:    d.webhookID,
		Timestamp:    d.start.UTC(),
		Status:       status,
		IPAddress:    d.clientIP,
		Error:        reason,
		ResponseTime: h.now().Sub(d.start).Milliseconds(),
		UserAgent:    d.userAgent,
	}
	if d.headers != nil {
		payload, err := json.Marshal(struct {
			Headers map[string]string `json:"headers"`
			Body    json.RawMessage   `json:"body,omitempty"`
		}{Headers: d.headers, Body: payloadJSON(d.body)})
		if err == nil {
			entry.Payload = payload
		}
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := h.audit.AppendAudit(auditCtx, entry); err != nil {
		h.logger.Error("Failed to write audit entry", err,
			logging.String("webhook_id", d.webhookID))
	}
}
