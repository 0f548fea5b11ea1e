package triggers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/storage/memory"
)

type fakePublisher struct {
	messages []*brokers.Message
	err      error
}

func (p *fakePublisher) Name() string { return "fake" }

func (p *fakePublisher) Publish(_ context.Context, msg *brokers.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePublisher) Health(context.Context) error { return nil }
func (p *fakePublisher) Close() error                 { return nil }

func testWebhook() *models.WebhookConfig {
	return &models.WebhookConfig{
		ID:   "wh_1",
		Name: "orders",
		WorkflowConfig: models.WorkflowConfig{
			WorkflowID: "wf-9",
			Topic:      "orders-events",
			Metadata:   map[string]string{"team": "billing"},
		},
	}
}

func TestStorageTrigger_RecordsExecution(t *testing.T) {
	store := memory.New()
	trigger := NewStorageTrigger(store)

	id, err := trigger.Trigger(context.Background(), testWebhook(), json.RawMessage(`{"a":1}`), "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	executions, err := store.ListExecutions(context.Background(), "wh_1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	exec := executions[0]
	assert.Equal(t, id, exec.ID)
	assert.Equal(t, "wf-9", exec.WorkflowID)
	assert.Equal(t, models.ExecutionTriggered, exec.Status)
	assert.Equal(t, TriggerTypeWebhook, exec.TriggerType)
	assert.Equal(t, "10.0.0.1", exec.SourceIP)
	assert.JSONEq(t, `{"a":1}`, string(exec.Payload))
}

func TestBrokerTrigger_PublishesEvent(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{}
	trigger := NewBrokerTrigger(pub, store, logging.NewNopLogger())

	id, err := trigger.Trigger(context.Background(), testWebhook(), json.RawMessage(`{"a":1}`), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "broker:fake", trigger.Name())

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, "orders-events", msg.Topic)
	assert.Equal(t, "wh_1", msg.Key)
	assert.Equal(t, id, msg.MessageID)
	assert.Equal(t, "wf-9", msg.Headers["X-Workflow-ID"])

	var event WorkflowEvent
	require.NoError(t, json.Unmarshal(msg.Body, &event))
	assert.Equal(t, id, event.ExecutionID)
	assert.Equal(t, "orders", event.WebhookName)
	assert.Equal(t, "billing", event.Metadata["team"])
	assert.JSONEq(t, `{"a":1}`, string(event.Payload))

	executions, err := store.ListExecutions(context.Background(), "wh_1", 10)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestBrokerTrigger_PublishFailureRecordsNothing(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{err: stderrors.New("broker down")}
	trigger := NewBrokerTrigger(pub, store, logging.NewNopLogger())

	_, err := trigger.Trigger(context.Background(), testWebhook(), nil, "10.0.0.1")
	require.Error(t, err)

	executions, err := store.ListExecutions(context.Background(), "wh_1", 10)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestBrokerTrigger_WithoutExecutionStore(t *testing.T) {
	pub := &fakePublisher{}
	trigger := NewBrokerTrigger(pub, nil, logging.NewNopLogger())

	_, err := trigger.Trigger(context.Background(), testWebhook(), nil, "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, pub.messages, 1)
}
