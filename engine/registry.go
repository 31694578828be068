package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a named lookup of engine configurations.
//
// It is meant to be built once at startup and treated as read-only from
// then on: every Add validates the configuration, so anything fetched
// from a Registry can go straight to Generate. The registry is an
// explicit value passed to whoever needs it rather than package-global
// state.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]*Config)}
}

// Add validates cfg and registers it under name. Registering an invalid
// configuration or reusing a name is an error.
func (r *Registry) Add(name string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.configs[name]; dup {
		return fmt.Errorf("config %q already registered", name)
	}
	r.configs[name] = cfg
	return nil
}

// Get returns the configuration registered under name.
func (r *Registry) Get(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Names returns the registered configuration names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
