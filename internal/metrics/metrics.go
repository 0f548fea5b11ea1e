// Package metrics exposes the gateway's Prometheus metrics. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webhook_gateway"

// Delivery outcomes
const (
	OutcomeAccepted = "accepted"
	OutcomeNotFound = "not_found"
	OutcomeInactive = "inactive"
	OutcomeSecurity = "security_rejected"
	OutcomeAuth     = "auth_failed"
	OutcomeError    = "error"
)

// Dispatch results
const (
	DispatchTriggered = "triggered"
	DispatchFailed    = "failed"
	DispatchDropped   = "dropped"
)

type Collector struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	deliveries     *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
	dispatchQueue  prometheus.Gauge
	breakerState   *prometheus.GaugeVec
	auditPruned    prometheus.Counter
	apiKeyDecision *prometheus.CounterVec
}

// New registers the gateway metrics plus Go and process collectors on a
// fresh registry
func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route template.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Inbound webhook deliveries by outcome.",
		}, []string{"outcome"}),
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Workflow trigger dispatches by result.",
		}, []string{"result"}),
		dispatchQueue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Dispatches waiting for a worker.",
		}),
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"breaker"}),
		auditPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_pruned_total",
			Help:      "Audit log entries removed by retention.",
		}),
		apiKeyDecision: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_key_validations_total",
			Help:      "API key validations by HTTP status of the decision.",
		}, []string{"status"}),
	}
}

func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) Delivery(outcome string) {
	if c == nil {
		return
	}
	c.deliveries.WithLabelValues(outcome).Inc()
}

func (c *Collector) Dispatch(result string) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(result).Inc()
}

func (c *Collector) DispatchQueueDepth(n int) {
	if c == nil {
		return
	}
	c.dispatchQueue.Set(float64(n))
}

// BreakerState records state as 0 closed, 1 open, 2 half-open
func (c *Collector) BreakerState(name string, state int) {
	if c == nil {
		return
	}
	c.breakerState.WithLabelValues(name).Set(float64(state))
}

func (c *Collector) AuditPruned(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.auditPruned.Add(float64(n))
}

func (c *Collector) APIKeyDecision(status int) {
	if c == nil {
		return
	}
	c.apiKeyDecision.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
