// Package triggers hands admitted deliveries to the workflow side, either
// by recording an execution or by publishing an event to a broker.
package triggers

import (
	"context"
	"encoding/json"
	"time"

	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/common/utils"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/storage"
)

// TriggerTypeWebhook is the trigger type of every execution started here
const TriggerTypeWebhook = "webhook"

// Trigger starts the workflow for one admitted delivery and returns the
// execution id.
type Trigger interface {
	Name() string
	Trigger(ctx context.Context, webhook *models.WebhookConfig, payload json.RawMessage, sourceIP string) (string, error)
}

// WorkflowEvent is the message body published to brokers
type WorkflowEvent struct {
	ExecutionID string            `json:"executionId"`
	WebhookID   string            `json:"webhookId"`
	WebhookName string            `json:"webhookName"`
	WorkflowID  string            `json:"workflowId,omitempty"`
	TriggerType string            `json:"triggerType"`
	SourceIP    string            `json:"sourceIp"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func newExecution(webhook *models.WebhookConfig, payload json.RawMessage, sourceIP string, at time.Time) *models.WorkflowExecution {
	return &models.WorkflowExecution{
		ID:          utils.NewExecutionID(),
		WebhookID:   webhook.ID,
		WorkflowID:  webhook.WorkflowConfig.WorkflowID,
		Status:      models.ExecutionTriggered,
		TriggerType: TriggerTypeWebhook,
		SourceIP:    sourceIP,
		Payload:     payload,
		CreatedAt:   at,
	}
}

// StorageTrigger records executions for a workflow runner polling the store
type StorageTrigger struct {
	executions storage.ExecutionStore
	now        func() time.Time
}

func NewStorageTrigger(executions storage.ExecutionStore) *StorageTrigger {
	return &StorageTrigger{executions: executions, now: time.Now}
}

func (t *StorageTrigger) Name() string { return "storage" }

func (t *StorageTrigger) Trigger(ctx context.Context, webhook *models.WebhookConfig, payload json.RawMessage, sourceIP string) (string, error) {
	execution := newExecution(webhook, payload, sourceIP, t.now().UTC())
	if err := t.executions.CreateExecution(ctx, execution); err != nil {
		return "", errors.InternalError("failed to record workflow execution", err)
	}
	return execution.ID, nil
}

// BrokerTrigger publishes a WorkflowEvent, then records the execution when
// an execution store is configured. A failed record after a successful
// publish is logged, not returned, so the event is never published twice.
type BrokerTrigger struct {
	publisher  brokers.Publisher
	executions storage.ExecutionStore
	logger     logging.Logger
	now        func() time.Time
}

func NewBrokerTrigger(publisher brokers.Publisher, executions storage.ExecutionStore, logger logging.Logger) *BrokerTrigger {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &BrokerTrigger{
		publisher:  publisher,
		executions: executions,
		logger:     logger.WithFields(logging.String("component", "broker_trigger")),
		now:        time.Now,
	}
}

func (t *BrokerTrigger) Name() string { return "broker:" + t.publisher.Name() }

func (t *BrokerTrigger) Trigger(ctx context.Context, webhook *models.WebhookConfig, payload json.RawMessage, sourceIP string) (string, error) {
	now := t.now().UTC()
	execution := newExecution(webhook, payload, sourceIP, now)

	body, err := json.Marshal(WorkflowEvent{
		ExecutionID: execution.ID,
		WebhookID:   webhook.ID,
		WebhookName: webhook.Name,
		WorkflowID:  webhook.WorkflowConfig.WorkflowID,
		TriggerType: TriggerTypeWebhook,
		SourceIP:    sourceIP,
		Payload:     payload,
		Metadata:    webhook.WorkflowConfig.Metadata,
		Timestamp:   now,
	})
	if err != nil {
		return "", errors.ValidationError("workflow event is not serializable").WithContext("cause", err.Error())
	}

	headers := map[string]string{
		"X-Webhook-ID":   webhook.ID,
		"X-Execution-ID": execution.ID,
	}
	if webhook.WorkflowConfig.WorkflowID != "" {
		headers["X-Workflow-ID"] = webhook.WorkflowConfig.WorkflowID
	}

	msg := &brokers.Message{
		Topic:     webhook.WorkflowConfig.Topic,
		Key:       webhook.ID,
		Headers:   headers,
		Body:      body,
		Timestamp: now,
		MessageID: execution.ID,
	}
	if err := t.publisher.Publish(ctx, msg); err != nil {
		return "", errors.ConnectionError("failed to publish workflow event", err).
			WithContext("broker", t.publisher.Name())
	}

	if t.executions != nil {
		if err := t.executions.CreateExecution(ctx, execution); err != nil {
			t.logger.Error("Failed to record published execution", err,
				logging.String("execution_id", execution.ID),
				logging.String("webhook_id", webhook.ID))
		}
	}
	return execution.ID, nil
}
