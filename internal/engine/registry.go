package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/simlab/simnet/internal/model"
)

// Registry maps engine-type names to factories. It is populated once at
// process start from a fixed factory list and treated as read-only
// afterwards; there is no dynamic plugin scanning.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty engine-type registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given name after checking conformance:
// the name must be non-empty, the factory non-nil, and a probe instance must
// be producible. Re-registering a name is an error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("register engine: empty name")
	}
	if f == nil {
		return fmt.Errorf("register engine %q: nil factory", name)
	}
	if probe := f(); probe == nil {
		return fmt.Errorf("register engine %q: factory produced nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("register engine %q: already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Lookup returns the factory for an engine-type name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownEngineType, name)
	}
	return f, nil
}

// Names returns all registered engine-type names, sorted for stable output.
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

// Len returns the number of registered engine types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// DefaultRegistry builds the registry of built-in engines. The proxy is
// deliberately not an entry: a registry row that is itself a remote mirror
// would recurse.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(TypeEcho, func() ModelingEngine { return NewEcho() }); err != nil {
		return nil, err
	}
	if err := r.Register(TypeDiffusion, func() ModelingEngine { return NewDiffusion() }); err != nil {
		return nil, err
	}
	return r, nil
}
