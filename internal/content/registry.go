package content

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kingrea/worldforge/internal/config"
)

// Factory constructs a backend from the run environment.
type Factory func(config.Env) (Service, error)

// Registry maintains known backend factories keyed by backend name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a backend factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("content: backend name is required")
	}
	if factory == nil {
		return fmt.Errorf("content: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("content: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs the backend selected by env.Backend.
func (r *Registry) Resolve(env config.Env) (Service, error) {
	r.mu.RLock()
	factory, ok := r.factories[env.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("content: unknown backend %q (known: %v)", env.Backend, r.Names())
	}
	svc, err := factory(env)
	if err != nil {
		return nil, fmt.Errorf("content: build %s backend: %w", env.Backend, err)
	}
	return svc, nil
}

// Names returns a sorted list of registered backend names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
