package step

import (
	"sort"
	"sync"
)

// Registry provides named callable and guard lookup for pipelines that
// are loaded from declarative definitions.
type Registry struct {
	mu        sync.RWMutex
	callables map[string]Callable
	guards    map[string]Guard
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		callables: make(map[string]Callable),
		guards:    make(map[string]Guard),
	}
}

// RegisterCallable adds a callable to the registry.
func (r *Registry) RegisterCallable(name string, c Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callables[name] = c
}

// Callable retrieves a callable by name.
func (r *Registry) Callable(name string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.callables[name]
	return c, ok
}

// RegisterGuard adds a guard to the registry.
func (r *Registry) RegisterGuard(name string, g Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[name] = g
}

// Guard retrieves a guard by name.
func (r *Registry) Guard(name string) (Guard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guards[name]
	return g, ok
}

// Callables returns sorted names of all registered callables.
func (r *Registry) Callables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callables))
	for name := range r.callables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
