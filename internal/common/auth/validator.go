package auth

import (
	"fmt"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/models"
)

// Result is the outcome of validating one delivery
type Result struct {
	Valid bool
	Error string
}

// Validator dispatches to the strategy registered for a method
type Validator struct {
	strategies map[string]AuthStrategy
}

// NewValidator creates a validator with the none, bearer_token, api_key and
// hmac strategies registered.
func NewValidator() *Validator {
	v := &Validator{strategies: make(map[string]AuthStrategy)}
	v.Register(&NoneStrategy{})
	v.Register(&BearerTokenStrategy{})
	v.Register(&APIKeyStrategy{})
	v.Register(&HMACStrategy{})
	return v
}

// Register adds or replaces a strategy
func (v *Validator) Register(strategy AuthStrategy) {
	v.strategies[strategy.GetType()] = strategy
}

// Validate checks req against cfg. An empty method is treated as none.
func (v *Validator) Validate(cfg models.Authentication, req Request) Result {
	if err := v.Authenticate(cfg, req); err != nil {
		return Result{Valid: false, Error: errors.PublicMessage(err)}
	}
	return Result{Valid: true}
}

// Authenticate is Validate in error form
func (v *Validator) Authenticate(cfg models.Authentication, req Request) error {
	method := cfg.Method
	if method == "" {
		method = models.AuthNone
	}

	strategy, ok := v.strategies[method]
	if !ok {
		return errors.ValidationError(ErrUnsupportedMethod).WithContext("method", method)
	}

	if err := strategy.Authenticate(cfg, req); err != nil {
		if errors.IsType(err, errors.ErrTypeConfig) {
			// a half-configured endpoint rejects everything
			return errors.ValidationError(ErrUnsupportedMethod).WithContext("reason", err.Error())
		}
		return err
	}
	return nil
}

// SupportedMethods lists the registered method names
func (v *Validator) SupportedMethods() []string {
	methods := make([]string, 0, len(v.strategies))
	for m := range v.strategies {
		methods = append(methods, m)
	}
	return methods
}

// IsSupported reports whether method has a registered strategy
func (v *Validator) IsSupported(method string) bool {
	_, ok := v.strategies[method]
	return ok
}

func (r Result) String() string {
	if r.Valid {
		return "valid"
	}
	return fmt.Sprintf("invalid: %s", r.Error)
}
