package ports

import (
	"context"

	"github.com/arborlabs/arbor/pkg/domain"
)

// DefinitionSource resolves actor definitions by name. It decouples the
// supervisor from wherever definitions live: a process-local registry, a
// manifest on disk, or a remote catalog.
type DefinitionSource interface {
	// Definition returns the definition registered under name.
	// Returns domain.ErrDefinitionNotFound if the name is unknown.
	Definition(name string) (*domain.ActorDefinition, error)

	// Names returns the sorted names of all available definitions.
	Names() ([]string, error)
}

// Watchable is implemented by definition sources that can signal backend
// changes, typically for hot-reload in development.
type Watchable interface {
	// Watch returns a channel signaled whenever the underlying source
	// changes. The event carries no detail; receivers re-list and reload.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
