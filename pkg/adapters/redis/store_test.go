package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/arbor/pkg/adapters/redis"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStoreContract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSnapshotStoreContract(t, redis.NewStore(client))
}

func TestRedisStoreTTLExpiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewStore(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	snap := &domain.Snapshot{InstanceID: "ttl-instance", Definition: "counter", Output: "v"}
	require.NoError(t, store.Save(ctx, snap))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "ttl-instance")

	// miniredis only advances expiry on FastForward.
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "ttl-instance")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestRedisStoreCustomPrefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewStore(client, redis.WithPrefix("custom:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Snapshot{InstanceID: "x", Definition: "counter"}))
	assert.True(t, mr.Exists("custom:snapshot:x"))
}

func TestRedisLockerContract(t *testing.T) {
	_, client := newClient(t)
	ports.RunLockerContract(t, redis.NewLocker(client, ""))
}
