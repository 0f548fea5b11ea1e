// Package registry maps backend type names to the factories that build them.
// The storage and broker packages each instantiate it for their own config
// and product types.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"webhook-gateway/internal/common/errors"
)

// Config is what a factory is selected by
type Config interface {
	Validate() error
	GetType() string
}

// Factory builds a T from a config of its own type
type Factory[C Config, T any] interface {
	Create(config C) (T, error)
	GetType() string
}

// Registry is safe for concurrent use
type Registry[C Config, T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[C, T]
}

// New creates an empty registry. kind names the product in errors.
func New[C Config, T any](kind string) *Registry[C, T] {
	return &Registry[C, T]{kind: kind, factories: make(map[string]Factory[C, T])}
}

// Register adds factory under its type, replacing any previous one
func (r *Registry[C, T]) Register(factory Factory[C, T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factory.GetType()] = factory
}

// Create validates config and hands it to the factory of its type
func (r *Registry[C, T]) Create(config C) (T, error) {
	var zero T
	if any(config) == nil {
		return zero, errors.ConfigError(r.kind + " config is required")
	}

	r.mu.RLock()
	factory, ok := r.factories[config.GetType()]
	r.mu.RUnlock()
	if !ok {
		return zero, errors.ConfigError(fmt.Sprintf("%s type %q is not registered", r.kind, config.GetType()))
	}

	if err := config.Validate(); err != nil {
		return zero, errors.ConfigError(fmt.Sprintf("invalid %s config: %v", config.GetType(), err))
	}
	return factory.Create(config)
}

// GetAvailableTypes lists registered types in sorted order
func (r *Registry[C, T]) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry[C, T]) IsRegistered(t string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[t]
	return ok
}
