package supervise

import (
	"context"
	"fmt"
	"testing"
)

func TestLockLifecycle(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("instance-%d", i)
		_ = s.WithLock(ctx, id, func(ctx context.Context) error { return nil })
	}

	// Every entry must be reference-counted back to zero and dropped.
	if leaked := len(s.locks); leaked != 0 {
		t.Errorf("lock leak: %d entries remaining after release", leaked)
	}
}

func TestLockReentrancyAcrossIDs(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()

	// Locks for distinct IDs are independent: holding one must not block
	// another.
	err := s.WithLock(ctx, "a", func(ctx context.Context) error {
		return s.WithLock(ctx, "b", func(ctx context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("nested locks on distinct ids: %v", err)
	}
}
