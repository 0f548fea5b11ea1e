package triggers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"webhook-gateway/internal/circuitbreaker"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/common/utils"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/models"
)

// DispatcherConfig bounds the work done for one delivery
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// Timeout applies to each attempt separately
	Timeout      time.Duration
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:      4,
		QueueSize:    1000,
		MaxAttempts:  3,
		Timeout:      10 * time.Second,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

type job struct {
	webhook  *models.WebhookConfig
	payload  json.RawMessage
	sourceIP string
}

// Dispatcher runs a Trigger off the request path. Jobs that find the queue
// full are dropped; jobs that fail every attempt are logged and dropped.
type Dispatcher struct {
	trigger  Trigger
	breakers *circuitbreaker.Set
	metrics  *metrics.Collector
	config   DispatcherConfig
	logger   logging.Logger

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	// a full queue drops every job; the warning is logged at most once per
	// dropLogInterval with the count since the last one
	dropLog    *rate.Sometimes
	suppressed atomic.Int64
}

const dropLogInterval = 10 * time.Second

// NewDispatcher creates a stopped dispatcher. breakers and collector may be nil.
func NewDispatcher(trigger Trigger, breakers *circuitbreaker.Set, collector *metrics.Collector, config DispatcherConfig, logger logging.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		trigger:  trigger,
		breakers: breakers,
		metrics:  collector,
		config:   config,
		logger:   logger.WithFields(logging.String("component", "dispatcher"), logging.String("trigger", trigger.Name())),
		queue:    make(chan job, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		dropLog:  &rate.Sometimes{First: 1, Interval: dropLogInterval},
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("Dispatcher started",
		logging.Int("workers", d.config.Workers),
		logging.Int("queue_size", d.config.QueueSize))
}

// Dispatch enqueues a delivery without blocking. It reports false when the
// job was dropped because the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Dispatch(webhook *models.WebhookConfig, payload json.RawMessage, sourceIP string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(webhook, "dispatcher stopped")
		return false
	}

	select {
	case d.queue <- job{webhook: webhook, payload: payload, sourceIP: sourceIP}:
		d.metrics.DispatchQueueDepth(len(d.queue))
		return true
	default:
		d.drop(webhook, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(webhook *models.WebhookConfig, reason string) {
	d.metrics.Dispatch(metrics.DispatchDropped)
	d.suppressed.Add(1)
	d.dropLog.Do(func() {
		d.logger.Warn("Dropping workflow dispatch",
			logging.String("webhook_id", webhook.ID),
			logging.String("reason", reason),
			logging.Int64("dropped", d.suppressed.Swap(0)))
	})
}

// Stop refuses new jobs and waits for queued ones to finish. When ctx ends
// first, in-flight attempts are cancelled and ctx's error is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.metrics.DispatchQueueDepth(len(d.queue))
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	start := time.Now()
	retry := utils.RetryConfig{
		MaxAttempts:   d.config.MaxAttempts,
		InitialDelay:  d.config.InitialDelay,
		MaxDelay:      d.config.MaxDelay,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
		RetryableErrors: func(err error) bool {
			if stderrors.Is(err, circuitbreaker.ErrOpen) {
				return false
			}
			return !errors.IsType(err, errors.ErrTypeValidation)
		},
	}

	var executionID string
	attempts := 0
	err := utils.RetryWithBackoff(d.ctx, retry, func() error {
		attempts++
		return d.attempt(func(ctx context.Context) error {
			id, err := d.trigger.Trigger(ctx, j.webhook, j.payload, j.sourceIP)
			executionID = id
			return err
		})
	})

	if err != nil {
		d.metrics.Dispatch(metrics.DispatchFailed)
		d.logger.Error("Workflow dispatch failed, dropping delivery", err,
			logging.String("webhook_id", j.webhook.ID),
			logging.Int("attempts", attempts),
			logging.Duration("elapsed", time.Since(start)))
		return
	}

	d.metrics.Dispatch(metrics.DispatchTriggered)
	d.logger.Info("Workflow triggered",
		logging.String("webhook_id", j.webhook.ID),
		logging.String("execution_id", executionID),
		logging.Int("attempts", attempts))
}

func (d *Dispatcher) attempt(fn func(ctx context.Context) error) error {
	call := func() error {
		ctx, cancel := context.WithTimeout(d.ctx, d.config.Timeout)
		defer cancel()
		return fn(ctx)
	}
	if d.breakers == nil {
		return call()
	}
	return d.breakers.Execute(d.ctx, d.trigger.Name(), call)
}
