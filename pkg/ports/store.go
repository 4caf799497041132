package ports

import (
	"context"

	"github.com/arborlabs/arbor/pkg/domain"
)

// SnapshotStore defines the interface for persisting instance snapshots.
// Supervisors use it to survive restarts: the last rendered output of every
// instance is written back after each mutating cycle and reloaded on demand.
type SnapshotStore interface {
	// Save persists a snapshot keyed by its instance ID, overwriting any
	// previous snapshot for that instance.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load retrieves the snapshot for an instance ID.
	// Returns domain.ErrSnapshotNotFound if none exists.
	Load(ctx context.Context, instanceID string) (*domain.Snapshot, error)

	// Delete removes the snapshot for an instance ID. Deleting a missing
	// snapshot is not an error.
	Delete(ctx context.Context, instanceID string) error

	// List returns the instance IDs with a stored snapshot.
	List(ctx context.Context) ([]string, error)
}
