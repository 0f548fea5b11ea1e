package brokers

import (
	"fmt"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/registry"
)

// Registry maps broker types to publisher factories
type Registry = registry.Registry[Config, Publisher]

func NewRegistry() *Registry {
	return registry.New[Config, Publisher]("broker")
}

// FactoryFunc adapts a typed constructor to Factory
type FactoryFunc[C Config] struct {
	Type string
	New  func(C) (Publisher, error)
}

func (f FactoryFunc[C]) GetType() string { return f.Type }

func (f FactoryFunc[C]) Create(config Config) (Publisher, error) {
	typed, ok := config.(C)
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("invalid config type for %s broker: %T", f.Type, config))
	}
	return f.New(typed)
}
