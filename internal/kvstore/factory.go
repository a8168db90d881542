package kvstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/registry"
)

// AttributeStoreFactory is the Strategy interface for creating attribute store
// implementations. Each backend (sql, redis, dynamodb, memory) implements this
// interface to provide its own factory method.
type AttributeStoreFactory interface {
	// Create creates a new attribute store based on the provided configuration.
	Create(config registry.InternalAttributeStoreConfig, deps Dependencies) (core.AttributeStore, error)

	// Type returns the type identifier for this factory (e.g., "redis", "dynamodb").
	Type() string

	// Validate validates the configuration specific to this backend.
	Validate(config registry.InternalAttributeStoreConfig) error
}

// Dependencies carries shared resources a backend may need.
type Dependencies struct {
	// Database is the relational database; required by the sql backend.
	Database core.Database

	// Logger is the parent logger; backends derive a component logger from it.
	Logger zerolog.Logger
}

var (
	// factoryRegistry stores all registered attribute store factories.
	factoryRegistry = make(map[string]AttributeStoreFactory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers an attribute store factory.
// This is called automatically by each implementation's init() function.
func RegisterFactory(factory AttributeStoreFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// register wires a factory into both the factory registry and the config
// validator registry.
func register(factory AttributeStoreFactory) {
	RegisterFactory(factory)
	registry.RegisterValidator(configValidator{factory: factory})
}

// Create creates an attribute store using the factory registered for config.Type.
func Create(config registry.InternalAttributeStoreConfig, deps Dependencies) (core.AttributeStore, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("attribute store type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported attribute store type: %s", config.Type)
	}

	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}

	return factory.Create(config, deps)
}

// GetRegisteredTypes returns every registered backend type, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a backend type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}

// configValidator adapts a factory to registry.ConfigValidator.
type configValidator struct {
	factory AttributeStoreFactory
}

func (v configValidator) Type() string {
	return v.factory.Type()
}

func (v configValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.AttributeStore.Type != v.Type() {
		return fmt.Errorf("invalid type for %s validator: %s", v.Type(), config.AttributeStore.Type)
	}
	if config.AttributeStore.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", config.AttributeStore.MaxRetries)
	}
	return v.factory.Validate(config.AttributeStore)
}

func validateTimeouts(config registry.InternalAttributeStoreConfig) error {
	if config.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", config.DialTimeout)
	}
	if config.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", config.ReadTimeout)
	}
	if config.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", config.WriteTimeout)
	}
	return nil
}
