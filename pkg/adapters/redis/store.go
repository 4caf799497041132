// Package redis provides Redis-backed implementations of the ports
// interfaces: a snapshot store and a distributed locker.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/arborlabs/arbor/pkg/domain"
)

const defaultPrefix = "arbor:"

// Store implements ports.SnapshotStore on Redis. Snapshots are stored as
// JSON under prefixed keys, with an optional TTL for automatic expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPrefix overrides the key prefix. The default is "arbor:".
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL sets an expiry on stored snapshots. Zero means no expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// NewStore creates a snapshot store on an existing Redis client.
func NewStore(client *backend.Client, opts ...StoreOption) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(instanceID string) string {
	return s.prefix + "snapshot:" + instanceID
}

// Save marshals the snapshot to JSON and writes it under the instance key.
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %q: %w", snap.InstanceID, err)
	}
	if err := s.client.Set(ctx, s.key(snap.InstanceID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save snapshot %q: %w", snap.InstanceID, err)
	}
	return nil
}

// Load reads and unmarshals the snapshot for an instance ID.
func (s *Store) Load(ctx context.Context, instanceID string) (*domain.Snapshot, error) {
	payload, err := s.client.Get(ctx, s.key(instanceID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %q", domain.ErrSnapshotNotFound, instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis load snapshot %q: %w", instanceID, err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %q: %w", instanceID, err)
	}
	return &snap, nil
}

// Delete removes the snapshot for an instance ID.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	if err := s.client.Del(ctx, s.key(instanceID)).Err(); err != nil {
		return fmt.Errorf("redis delete snapshot %q: %w", instanceID, err)
	}
	return nil
}

// List scans for all snapshot keys under the prefix and returns the instance
// IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	pattern := s.prefix + "snapshot:*"
	var ids []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(s.prefix+"snapshot:"):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis list snapshots: %w", err)
	}
	return ids, nil
}
