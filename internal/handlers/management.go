package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"webhook-gateway/internal/apikeys"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/identity"
	"webhook-gateway/internal/webhooks"
)

const maxManagementBody = 1 << 20

// HealthCheck reports the health of a dependency
type HealthCheck func(ctx context.Context) error

// HealthResponse is returned by /health and /
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// SuccessResponse acknowledges a mutation that returns no record
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Handlers serves the management API
type Handlers struct {
	webhooks *webhooks.Manager
	keys     *apikeys.Service
	checks   map[string]HealthCheck
	logger   logging.Logger
}

func New(manager *webhooks.Manager, keys *apikeys.Service, checks map[string]HealthCheck, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		webhooks: manager,
		keys:     keys,
		checks:   checks,
		logger:   logger.WithFields(logging.String("component", "management")),
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.HTTPStatus(err) >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("Management request failed", err,
			logging.String("path", r.URL.Path))
	}
	writeError(w, err)
}

func callerID(r *http.Request) string {
	if id, ok := identity.FromContext(r.Context()); ok {
		return id.UID
	}
	return ""
}

// HealthCheck reports service health
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Service:   "webhook-gateway",
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK

	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp.Checks = make(map[string]string, len(h.checks))
		for name, check := range h.checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = "unhealthy"
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				h.logger.Warn("Health check failed", logging.String("check", name), logging.Err(err))
				continue
			}
			resp.Checks[name] = "healthy"
		}
	}

	writeJSON(w, status, resp)
}

// CreateWebhook registers an endpoint
// @Summary Create webhook endpoint
// @Tags webhooks
// @Accept json
// @Produce json
// @Param webhook body webhooks.CreateRequest true "Endpoint configuration"
// @Success 201 {object} webhooks.Webhook
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/webhooks [post]
func (h *Handlers) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhooks.CreateRequest
	if err := decodeJSON(r, maxManagementBody, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	created, err := h.webhooks.Create(r.Context(), req, callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListWebhooks returns every endpoint
// @Summary List webhook endpoints
// @Tags webhooks
// @Produce json
// @Success 200 {array} webhooks.Webhook
// @Security BearerAuth
// @Router /api/webhooks [get]
func (h *Handlers) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	list, err := h.webhooks.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetWebhook returns one endpoint
// @Summary Get webhook endpoint
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} webhooks.Webhook
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/webhooks/{id} [get]
func (h *Handlers) GetWebhook(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.webhooks.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhook)
}

// UpdateWebhook applies a partial update
// @Summary Update webhook endpoint
// @Tags webhooks
// @Accept json
// @Produce json
// @Param id path string true "Webhook ID"
// @Param webhook body webhooks.UpdateRequest true "Fields to change"
// @Success 200 {object} webhooks.Webhook
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/webhooks/{id} [put]
func (h *Handlers) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhooks.UpdateRequest
	if err := decodeJSON(r, maxManagementBody, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.webhooks.Update(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteWebhook removes an endpoint
// @Summary Delete webhook endpoint
// @Tags webhooks
// @Param id path string true "Webhook ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/webhooks/{id} [delete]
func (h *Handlers) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhooks.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookLogs returns the newest audit entries of an endpoint
// @Summary Webhook audit log
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Param limit query int false "Maximum entries (default 100, max 1000)"
// @Success 200 {array} models.AuditLogEntry
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/webhooks/{id}/logs [get]
func (h *Handlers) WebhookLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(w, r, errors.ValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.webhooks.AuditLogs(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CreateAPIKey issues a key to the caller. The plaintext appears only in
// this response.
// @Summary Create API key
// @Tags api-keys
// @Accept json
// @Produce json
// @Param key body apikeys.CreateRequest false "Key settings"
// @Success 201 {object} apikeys.Created
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/keys [post]
func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apikeys.CreateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, maxManagementBody, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	created, err := h.keys.Create(r.Context(), callerID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListAPIKeys returns the caller's keys, newest first
// @Summary List API keys
// @Tags api-keys
// @Produce json
// @Success 200 {array} models.APIKey
// @Security BearerAuth
// @Router /api/keys [get]
func (h *Handlers) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListForUser(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// RevokeAPIKey permanently deactivates one of the caller's keys
// @Summary Revoke API key
// @Tags api-keys
// @Produce json
// @Param id path string true "API key ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/keys/{id} [delete]
func (h *Handlers) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Revoke(r.Context(), mux.Vars(r)["id"], callerID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "API key revoked"})
}
