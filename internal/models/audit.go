package models

import (
	"encoding/json"
	"time"
)

// Audit statuses
const (
	AuditSuccess = "success"
	AuditError   = "error"
)

// AuditLogEntry records one admission attempt
type AuditLogEntry struct {
	ID           string          `json:"id"`
	WebhookID    string          `json:"webhookId"`
	Timestamp    time.Time       `json:"timestamp"`
	Status       string          `json:"status"`
	IPAddress    string          `json:"ipAddress"`
	Error        string          `json:"error,omitempty"`
	ResponseTime int64           `json:"responseTime"`
	UserAgent    string          `json:"userAgent,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Execution statuses
const (
	ExecutionTriggered = "triggered"
	ExecutionFailed    = "failed"
)

// WorkflowExecution records a workflow started by a delivery
type WorkflowExecution struct {
	ID          string          `json:"id"`
	WebhookID   string          `json:"webhookId"`
	WorkflowID  string          `json:"workflowId,omitempty"`
	Status      string          `json:"status"`
	TriggerType string          `json:"triggerType"`
	SourceIP    string          `json:"sourceIp"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
