package triggers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/circuitbreaker"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/models"
)

// scriptedTrigger fails the first failures calls, then succeeds
type scriptedTrigger struct {
	failures int32
	err      error
	calls    atomic.Int32
	block    chan struct{}

	mu   sync.Mutex
	seen []string
}

func (s *scriptedTrigger) Name() string { return "scripted" }

func (s *scriptedTrigger) Trigger(ctx context.Context, webhook *models.WebhookConfig, _ json.RawMessage, _ string) (string, error) {
	n := s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if n <= s.failures {
		if s.err != nil {
			return "", s.err
		}
		return "", stderrors.New("transient")
	}
	s.mu.Lock()
	s.seen = append(s.seen, webhook.ID)
	s.mu.Unlock()
	return "exec-" + webhook.ID, nil
}

func fastConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:      2,
		QueueSize:    10,
		MaxAttempts:  3,
		Timeout:      time.Second,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func stop(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcher_Success(t *testing.T) {
	trigger := &scriptedTrigger{}
	collector := metrics.New()
	d := NewDispatcher(trigger, nil, collector, fastConfig(), logging.NewNopLogger())
	d.Start()

	assert.True(t, d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1"))
	assert.True(t, d.Dispatch(&models.WebhookConfig{ID: "b"}, nil, "1.1.1.1"))
	stop(t, d)

	assert.ElementsMatch(t, []string{"a", "b"}, trigger.seen)
	assert.Equal(t, int32(2), trigger.calls.Load())
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	trigger := &scriptedTrigger{failures: 2}
	d := NewDispatcher(trigger, nil, nil, fastConfig(), logging.NewNopLogger())
	d.Start()

	d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1")
	stop(t, d)

	assert.Equal(t, int32(3), trigger.calls.Load())
	assert.Equal(t, []string{"a"}, trigger.seen)
}

func TestDispatcher_DropsAfterMaxAttempts(t *testing.T) {
	trigger := &scriptedTrigger{failures: 100}
	d := NewDispatcher(trigger, nil, nil, fastConfig(), logging.NewNopLogger())
	d.Start()

	d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1")
	stop(t, d)

	assert.Equal(t, int32(3), trigger.calls.Load())
	assert.Empty(t, trigger.seen)
}

func TestDispatcher_DoesNotRetryValidationErrors(t *testing.T) {
	trigger := &scriptedTrigger{failures: 100, err: errors.ValidationError("bad payload")}
	d := NewDispatcher(trigger, nil, nil, fastConfig(), logging.NewNopLogger())
	d.Start()

	d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1")
	stop(t, d)

	assert.Equal(t, int32(1), trigger.calls.Load())
}

func TestDispatcher_OpenBreakerStopsAttempts(t *testing.T) {
	trigger := &scriptedTrigger{failures: 100}
	breakers := circuitbreaker.NewSet(circuitbreaker.Config{
		MaxFailures:           1,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, logging.NewNopLogger(), nil)

	cfg := fastConfig()
	cfg.Workers = 1
	d := NewDispatcher(trigger, breakers, nil, cfg, logging.NewNopLogger())
	d.Start()

	d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1")
	d.Dispatch(&models.WebhookConfig{ID: "b"}, nil, "1.1.1.1")
	stop(t, d)

	// the first failure trips the breaker; every later attempt is rejected
	assert.Equal(t, int32(1), trigger.calls.Load())
	assert.Equal(t, circuitbreaker.StateOpen, breakers.Get("scripted").State())
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	trigger := &scriptedTrigger{}
	collector := metrics.New()
	cfg := fastConfig()
	cfg.QueueSize = 1
	d := NewDispatcher(trigger, nil, collector, cfg, logging.NewNopLogger())

	// not started, so nothing drains the queue
	assert.True(t, d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1"))
	assert.False(t, d.Dispatch(&models.WebhookConfig{ID: "b"}, nil, "1.1.1.1"))

	body := scrape(t, collector)
	assert.Contains(t, body, `webhook_gateway_dispatch_total{result="dropped"} 1`)
	stop(t, d)
}

func TestDispatcher_DropWarningsAreThrottled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewZapLogger(logging.LogConfig{Format: "json", Output: &buf})
	require.NoError(t, err)

	cfg := fastConfig()
	cfg.QueueSize = 1
	d := NewDispatcher(&scriptedTrigger{}, nil, nil, cfg, logger)

	require.True(t, d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1"))
	for i := 0; i < 5; i++ {
		assert.False(t, d.Dispatch(&models.WebhookConfig{ID: "b"}, nil, "1.1.1.1"))
	}

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Dropping workflow dispatch")))
	assert.Contains(t, buf.String(), `"dropped":1`)
	assert.Equal(t, int64(4), d.suppressed.Load())
	stop(t, d)
}

func TestDispatcher_RejectsAfterStop(t *testing.T) {
	d := NewDispatcher(&scriptedTrigger{}, nil, nil, fastConfig(), logging.NewNopLogger())
	d.Start()
	stop(t, d)

	assert.False(t, d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1"))
	assert.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_StopDeadlineCancelsAttempts(t *testing.T) {
	trigger := &scriptedTrigger{block: make(chan struct{})}
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.Timeout = time.Minute
	d := NewDispatcher(trigger, nil, nil, cfg, logging.NewNopLogger())
	d.Start()

	d.Dispatch(&models.WebhookConfig{ID: "a"}, nil, "1.1.1.1")
	require.Eventually(t, func() bool { return trigger.calls.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)
	assert.Empty(t, trigger.seen)
}

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
