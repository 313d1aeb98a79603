package gdao

import (
	"sort"
	"strings"
	"sync"
)

// =====================================
// Provider Registry
// =====================================

// ProviderFactory creates session factories from configuration
type ProviderFactory interface {
	Create(config Config) (SessionFactory, error)
	SupportedDrivers() []string
}

// ProviderRegistry holds provider factories by name
type ProviderRegistry struct {
	mutex     sync.RWMutex
	providers map[string]ProviderFactory
}

// DefaultRegistry is the registry providers add themselves to in init()
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty provider registry
func NewRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register adds or replaces a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.providers[strings.ToLower(name)] = factory
}

// Get returns the factory registered under name
func (r *ProviderRegistry) Get(name string) (ProviderFactory, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	factory, exists := r.providers[strings.ToLower(name)]
	if !exists {
		return nil, Error{
			Type:    ErrorTypeNotFound,
			Message: "provider not found: " + name,
		}
	}
	return factory, nil
}

// List returns the registered provider names in sorted order
func (r *ProviderRegistry) List() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a provider factory
func (r *ProviderRegistry) Unregister(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.providers, strings.ToLower(name))
}

// RegisterProvider registers a provider factory on the default registry
func RegisterProvider(name string, factory ProviderFactory) {
	DefaultRegistry.Register(name, factory)
}

// ListProviders returns all registered provider names
func ListProviders() []string {
	return DefaultRegistry.List()
}

// Open creates a session factory with the provider named by config.Provider
func Open(config Config) (SessionFactory, error) {
	factory, err := DefaultRegistry.Get(config.Provider)
	if err != nil {
		return nil, err
	}
	return factory.Create(config)
}
