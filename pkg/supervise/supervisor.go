package supervise

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/ports"
)

// lockEntry holds the per-ID mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Supervisor manages named instances: it spawns them on demand from a
// definition source and serializes all access per instance ID.
// Reference counting garbage-collects locks for idle IDs.
type Supervisor struct {
	rt     *arbor.Runtime
	source ports.DefinitionSource

	mu    sync.Mutex
	locks map[string]*lockEntry
	live  map[string]*arbor.Handle

	store   ports.SnapshotStore     // optional persistence
	locker  ports.DistributedLocker // optional cross-replica locking
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Supervisor.
type Option func(*Supervisor)

// WithStore enables snapshot persistence after every mutating operation.
func WithStore(store ports.SnapshotStore) Option {
	return func(s *Supervisor) { s.store = store }
}

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Supervisor) { s.locker = locker }
}

// WithLockTTL sets the distributed lock TTL. The default is 30 seconds.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Supervisor) { s.lockTTL = ttl }
}

// WithLogger configures a logger for deferred errors like failed lock
// releases.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// New creates a Supervisor over a runtime and a definition source.
func New(rt *arbor.Runtime, source ports.DefinitionSource, opts ...Option) *Supervisor {
	s := &Supervisor{
		rt:      rt,
		source:  source,
		locks:   make(map[string]*lockEntry),
		live:    make(map[string]*arbor.Handle),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller locks entry.mu and calls release(id) after unlocking.
func (s *Supervisor) acquire(id string) *lockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.locks[id]
	if !ok {
		entry = &lockEntry{}
		s.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and drops the entry at zero.
func (s *Supervisor) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(s.locks, id)
	}
}

// WithLock executes fn while holding the lock for the instance ID, both the
// local mutex and, when configured, the distributed lock.
func (s *Supervisor) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := s.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		s.release(id)
	}()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, id, s.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				s.logger.Warn("failed to release distributed lock, will expire via TTL",
					"instance_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// LoadOrSpawn returns the live handle for id, spawning a fresh instance from
// the named definition when none exists.
func (s *Supervisor) LoadOrSpawn(ctx context.Context, id, definition string, args ...any) (*arbor.Handle, error) {
	var h *arbor.Handle
	err := s.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		h, err = s.handleLocked(ctx, id, definition, args...)
		return err
	})
	return h, err
}

func (s *Supervisor) handleLocked(ctx context.Context, id, definition string, args ...any) (*arbor.Handle, error) {
	s.mu.Lock()
	h, ok := s.live[id]
	s.mu.Unlock()
	if ok {
		return h, nil
	}

	def, err := s.source.Definition(definition)
	if err != nil {
		return nil, err
	}
	h, err = s.rt.SpawnID(ctx, id, def, args...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.live[id] = h
	s.mu.Unlock()

	if err := s.persist(ctx, h); err != nil {
		s.logger.Warn("failed to persist initial snapshot", "instance_id", id, "err", err)
	}
	return h, nil
}

// Lookup returns the live handle for id.
// Returns domain.ErrInstanceNotFound when no instance is live under that ID.
func (s *Supervisor) Lookup(id string) (*arbor.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.live[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInstanceNotFound, id)
	}
	return h, nil
}

// Update replaces the argument tuple of a live instance and persists the
// resulting snapshot.
func (s *Supervisor) Update(ctx context.Context, id string, args ...any) error {
	return s.WithLock(ctx, id, func(ctx context.Context) error {
		h, err := s.Lookup(id)
		if err != nil {
			return err
		}
		if err := h.Update(args...); err != nil {
			return err
		}
		return s.persist(ctx, h)
	})
}

// Send dispatches a trap on a live instance and persists the resulting
// snapshot. The trap result is returned as from Handle.Send.
func (s *Supervisor) Send(ctx context.Context, id, trap string, args ...any) (any, error) {
	var out any
	err := s.WithLock(ctx, id, func(ctx context.Context) error {
		h, err := s.Lookup(id)
		if err != nil {
			return err
		}
		out, err = h.Send(ctx, trap, args...)
		if err != nil {
			return err
		}
		return s.persist(ctx, h)
	})
	return out, err
}

// Render returns the current output of a live instance. It never runs a
// cycle and takes no lock beyond the handle's own gate.
func (s *Supervisor) Render(id string) (any, error) {
	h, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	return h.Render()
}

// LastSnapshot loads the persisted snapshot for id from the store, live or
// not.
func (s *Supervisor) LastSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	if s.store == nil {
		return nil, errors.New("no snapshot store configured")
	}
	return s.store.Load(ctx, id)
}

// Close tears down the live instance under id and removes its persisted
// snapshot.
func (s *Supervisor) Close(ctx context.Context, id string) error {
	return s.WithLock(ctx, id, func(ctx context.Context) error {
		s.mu.Lock()
		h, ok := s.live[id]
		delete(s.live, id)
		s.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrInstanceNotFound, id)
		}

		closeErr := h.Close(false)
		if s.store != nil {
			if err := s.store.Delete(ctx, id); err != nil {
				closeErr = errors.Join(closeErr, err)
			}
		}
		return closeErr
	})
}

// List returns the IDs of live instances plus, when a store is configured,
// the IDs with a persisted snapshot.
func (s *Supervisor) List(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	s.mu.Lock()
	for id := range s.live {
		seen[id] = true
	}
	s.mu.Unlock()

	if s.store != nil {
		stored, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range stored {
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Supervisor) persist(ctx context.Context, h *arbor.Handle) error {
	if s.store == nil {
		return nil
	}
	snap, err := h.Snapshot()
	if err != nil {
		return err
	}
	return s.store.Save(ctx, &snap)
}
