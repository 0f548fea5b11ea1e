// Package circuitbreaker guards workflow trigger backends with Sony's
// gobreaker so a dead broker stops consuming dispatch attempts.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
)

// ErrOpen is wrapped by Execute when the breaker rejects a call
var ErrOpen = stderrors.New("circuit breaker is open")

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures consecutive failures open the breaker
	MaxFailures int
	// Timeout is how long the breaker stays open before half-open
	Timeout time.Duration
	// MaxConcurrentRequests allowed while half-open
	MaxConcurrentRequests int
}

func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// DispatchConfig is tuned for workflow triggers, which tolerate a short
// outage but should not hammer a broker that is down
var DispatchConfig = Config{
	MaxFailures:           10,
	Timeout:               30 * time.Second,
	MaxConcurrentRequests: 3,
}

func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Stats struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Failures  int    `json:"failures"`
	Successes int    `json:"successes"`
}

// Breaker wraps a gobreaker.CircuitBreaker
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// New creates a breaker. An invalid config falls back to DefaultConfig.
// onChange, when set, is called on every state transition.
func New(name string, config Config, logger logging.Logger, onChange func(name string, to State)) *Breaker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.String("breaker", name), logging.Err(err))
		config = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
			if onChange != nil {
				onChange(name, fromGoBreaker(to))
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// a rejected payload says nothing about the backend's health
			switch errors.GetType(err) {
			case errors.ErrTypeValidation, errors.ErrTypeNotFound:
				return true
			}
			return false
		},
	}

	return &Breaker{name: name, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn unless the breaker is open
func (b *Breaker) Execute(_ context.Context, fn func() error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrOpen, b.name)
	}
	return err
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	return fromGoBreaker(b.breaker.State())
}

func (b *Breaker) Stats() Stats {
	counts := b.breaker.Counts()
	return Stats{
		Name:      b.name,
		State:     b.State().String(),
		Failures:  int(counts.TotalFailures),
		Successes: int(counts.TotalSuccesses),
	}
}

func fromGoBreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
