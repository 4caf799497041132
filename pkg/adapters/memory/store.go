package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.Snapshot
}

// NewStore creates a new in-memory snapshot store.
func NewStore() *Store {
	return &Store{data: make(map[string]*domain.Snapshot)}
}

// Save persists a copy of the snapshot in memory.
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	// Shallow copy isolates the stored record from later caller mutation.
	copied := *snap
	s.mu.Lock()
	s.data[snap.InstanceID] = &copied
	s.mu.Unlock()
	return nil
}

// Load retrieves the snapshot for an instance ID.
func (s *Store) Load(ctx context.Context, instanceID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[instanceID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	copied := *snap
	return &copied, nil
}

// Delete removes the snapshot for an instance ID.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	s.mu.Lock()
	delete(s.data, instanceID)
	s.mu.Unlock()
	return nil
}

// List returns the instance IDs with a stored snapshot, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}
