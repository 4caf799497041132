package domain

import (
	"context"
	"sync"
)

// Future is the deferred result of a deferred-executing binding, trap
// observer, or instance. It resolves exactly once; later calls to Resolve or
// Reject are no-ops. Deferred compute functions return a *Future and resolve
// it from their own goroutine; the scheduler awaits it at the cycle's single
// suspension point.
type Future struct {
	once sync.Once
	done chan struct{}

	value any
	err   error
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ResolvedFuture returns a future already carrying a value.
func ResolvedFuture(v any) *Future {
	f := NewFuture()
	f.Resolve(v)
	return f
}

// FailedFuture returns a future already carrying an error.
func FailedFuture(err error) *Future {
	f := NewFuture()
	f.Reject(err)
	return f
}

// Resolve completes the future with a value.
func (f *Future) Resolve(v any) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

// Reject completes the future with an error.
func (f *Future) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed on completion.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future completes or the context is cancelled.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
