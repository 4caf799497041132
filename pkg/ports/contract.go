package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/arbor/pkg/domain"
)

// RunSnapshotStoreContract verifies that a SnapshotStore implementation
// adheres to the interface contract. Adapter test suites call it against
// their backend.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	id := "contract-" + time.Now().Format("20060102150405")

	t.Run("SaveAndLoad", func(t *testing.T) {
		snap := &domain.Snapshot{
			InstanceID: id,
			Definition: "counter",
			RenderedAt: time.Now().UTC().Truncate(time.Second),
			Output:     map[string]any{"count": float64(3)},
		}
		require.NoError(t, store.Save(ctx, snap))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, snap.InstanceID, loaded.InstanceID)
		assert.Equal(t, snap.Definition, loaded.Definition)
		// JSON round-trips may widen numbers; require presence, not type.
		assert.NotNil(t, loaded.Output)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+id)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &domain.Snapshot{InstanceID: id, Definition: "counter", Output: 1}))
		require.NoError(t, store.Save(ctx, &domain.Snapshot{InstanceID: id, Definition: "counter", Output: 2}))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, 1, loaded.Output)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &domain.Snapshot{InstanceID: id, Definition: "counter"}))
		require.NoError(t, store.Delete(ctx, id))

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

		// Deleting a missing snapshot is a no-op.
		assert.NoError(t, store.Delete(ctx, id))
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := id+"-1", id+"-2"
		require.NoError(t, store.Save(ctx, &domain.Snapshot{InstanceID: id1, Definition: "counter"}))
		require.NoError(t, store.Save(ctx, &domain.Snapshot{InstanceID: id2, Definition: "counter"}))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunLockerContract verifies that a DistributedLocker implementation provides
// mutual exclusion and context cancellation.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-lock-" + time.Now().Format("20060102150405")

	t.Run("AcquireRelease", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, unlock(ctx))
	})

	t.Run("MutualExclusion", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)

		blocked := make(chan struct{})
		go func() {
			inner, err := locker.Lock(ctx, key, 5*time.Second)
			if err == nil {
				_ = inner(ctx)
			}
			close(blocked)
		}()

		select {
		case <-blocked:
			t.Fatal("second lock acquired while first still held")
		case <-time.After(100 * time.Millisecond):
		}

		require.NoError(t, unlock(ctx))
		select {
		case <-blocked:
		case <-time.After(2 * time.Second):
			t.Fatal("second lock never acquired after release")
		}
	})

	t.Run("ContextCancel", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(shortCtx, key, 5*time.Second)
		assert.Error(t, err)
	})
}
