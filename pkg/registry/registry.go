// Package registry provides a named catalog of actor definitions, used by
// hosts that spawn instances by name (HTTP adapter, CLI manifests).
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Registry manages the available definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*domain.ActorDefinition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*domain.ActorDefinition)}
}

// Register adds a definition under its own name. A definition with the same
// name is overwritten.
func (r *Registry) Register(def *domain.ActorDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*domain.ActorDefinition, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrDefinitionNotFound, name)
	}
	return def, nil
}

// Names returns the registered definition names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
