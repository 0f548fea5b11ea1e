package storage

import "webhook-gateway/internal/common/registry"

// Registry maps backend names to factories
type Registry = registry.Registry[Config, Storage]

func NewRegistry() *Registry {
	return registry.New[Config, Storage]("storage")
}
