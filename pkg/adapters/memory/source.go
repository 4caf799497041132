package memory

import (
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/registry"
)

// Source implements ports.DefinitionSource over a process-local registry.
type Source struct {
	reg *registry.Registry
}

// NewSource creates a source backed by a fresh registry populated with the
// given definitions.
func NewSource(defs ...*domain.ActorDefinition) *Source {
	reg := registry.New()
	for _, def := range defs {
		reg.Register(def)
	}
	return &Source{reg: reg}
}

// NewSourceFromRegistry wraps an existing registry.
func NewSourceFromRegistry(reg *registry.Registry) *Source {
	return &Source{reg: reg}
}

// Definition returns the definition registered under name.
func (s *Source) Definition(name string) (*domain.ActorDefinition, error) {
	return s.reg.Lookup(name)
}

// Names returns the sorted names of all registered definitions.
func (s *Source) Names() ([]string, error) {
	return s.reg.Names(), nil
}
