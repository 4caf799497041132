package schedule

import (
	"context"
	"sync"
)

// Gate is a per-instance single-flight queue: concurrent callers enter
// strictly in arrival order, one at a time. This guarantees an update cycle
// never observes partially-applied state from a concurrent call.
type Gate struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
}

// NewGate returns an open gate.
func NewGate() *Gate { return &Gate{} }

// Enter blocks until the caller holds the gate or the context is cancelled.
func (g *Gate) Enter(ctx context.Context) error {
	g.mu.Lock()
	if !g.busy {
		g.busy = true
		g.mu.Unlock()
		return nil
	}
	turn := make(chan struct{})
	g.waiters = append(g.waiters, turn)
	g.mu.Unlock()

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		g.abandon(turn)
		return ctx.Err()
	}
}

// Leave releases the gate and admits the oldest waiter, if any.
func (g *Gate) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for len(g.waiters) > 0 {
		turn := g.waiters[0]
		g.waiters = g.waiters[1:]
		if turn == nil { // abandoned by a cancelled waiter
			continue
		}
		close(turn)
		return
	}
	g.busy = false
}

// abandon marks a waiter slot dead. If the slot was already granted between
// the cancellation and the lock, the grant is passed along.
func (g *Gate) abandon(turn chan struct{}) {
	g.mu.Lock()
	for i, w := range g.waiters {
		if w == turn {
			g.waiters[i] = nil
			g.mu.Unlock()
			return
		}
	}
	g.mu.Unlock()
	// Not found: Leave already granted us the gate. Give it back.
	select {
	case <-turn:
		g.Leave()
	default:
	}
}
