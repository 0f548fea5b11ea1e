// Package models holds the records the gateway stores and serves.
package models

import "time"

// Authentication methods
const (
	AuthNone        = "none"
	AuthBearerToken = "bearer_token"
	AuthAPIKey      = "api_key"
	AuthHMAC        = "hmac"
)

// Authentication is the per-endpoint credential configuration. Exactly one
// method is active.
type Authentication struct {
	Method          string `json:"method"`
	Token           string `json:"token,omitempty"`
	APIKey          string `json:"apiKey,omitempty"`
	Secret          string `json:"secret,omitempty"`
	HeaderName      string `json:"headerName,omitempty"`
	SignatureHeader string `json:"signatureHeader,omitempty"`
}

// Masked returns a copy with secrets replaced, for management responses
func (a Authentication) Masked() Authentication {
	const mask = "***"
	if a.Token != "" {
		a.Token = mask
	}
	if a.APIKey != "" {
		a.APIKey = mask
	}
	if a.Secret != "" {
		a.Secret = mask
	}
	return a
}

// RateLimit is a quota of Requests per Period (second, minute, hour, day)
type RateLimit struct {
	Requests int    `json:"requests"`
	Period   string `json:"period"`
}

// Security holds IP allow-listing and quota settings
type Security struct {
	IPWhitelist []string  `json:"ipWhitelist"`
	RateLimit   RateLimit `json:"rateLimit"`
	SSLRequired bool      `json:"sslRequired"`
}

// WorkflowConfig tells the trigger which workflow a delivery starts
type WorkflowConfig struct {
	WorkflowID  string            `json:"workflowId,omitempty"`
	TriggerType string            `json:"triggerType,omitempty"`
	Topic       string            `json:"topic,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// WebhookConfig is a registered inbound delivery target
type WebhookConfig struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	EndpointPath   string         `json:"endpointPath"`
	IsActive       bool           `json:"isActive"`
	Authentication Authentication `json:"authentication"`
	Security       Security       `json:"security"`
	WorkflowConfig WorkflowConfig `json:"workflowConfig"`
	TotalRequests  int64          `json:"totalRequests"`
	ErrorCount     int64          `json:"errorCount"`
	LastTriggered  *time.Time     `json:"lastTriggered,omitempty"`
	CreatedBy      string         `json:"createdBy,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
