package instance

import (
	"context"
	"sync"
	"time"

	"github.com/arborlabs/arbor/internal/schedule"
	"github.com/arborlabs/arbor/pkg/domain"
)

// trapEntry is one registered observer of a trap name. Single-flight entries
// remember the cancel function of the invocation still in flight.
type trapEntry struct {
	decl *domain.TrapDecl

	mu     sync.Mutex
	cancel context.CancelFunc
}

// invocationCtx derives the context a handler runs under. It is cancelled
// when the instance closes; for single-flight entries it is additionally
// cancelled when a newer invocation supersedes this one.
func (e *trapEntry) invocationCtx(base context.Context) context.Context {
	if !e.decl.SingleFlight {
		return base
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(base)
	e.cancel = cancel
	return ctx
}

// Send invokes every observer of a trap name in registration order. All
// observers run regardless of earlier failures; the first error is returned
// after the whole invocation, later errors suppressed. With no observers the
// call fails with NoSuchTrapError and mutates nothing.
//
// When any observer is deferred-executing, the result is a *domain.Future
// unifying all observer results; otherwise it is the single observer's
// return value, or a slice of values in registration order.
func (in *Instance) Send(ctx context.Context, trap string, args ...any) (any, error) {
	if err := in.enter(ctx, "send"); err != nil {
		return nil, err
	}
	defer in.gate.Leave()

	entries := in.traps[trap]
	if len(entries) == 0 {
		return nil, &domain.NoSuchTrapError{Trap: trap}
	}

	results := make([]any, len(entries))
	errs := make([]error, len(entries))
	var firstErr error
	deferred := false
	for i, e := range entries {
		if e.decl.Deferred {
			deferred = true
		}
		sc := &scopeImpl{in: in, owner: "trap:" + trap, mutable: true}
		v, err := e.decl.Handler(e.invocationCtx(in.ctx), sc, args...)
		if err != nil {
			errs[i] = &domain.HandlerError{Trap: trap, Err: err}
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		results[i] = v
	}

	if in.hooks.OnTrap != nil {
		in.hooks.OnTrap(in.ctx, &domain.TrapEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventTrap},
			Definition: in.def.Name,
			InstanceID: in.id,
			Trap:       trap,
			IsError:    firstErr != nil,
		})
	}

	// Handlers mutate through Set; flush those writes even when an observer
	// failed. The observer error keeps priority over a cycle error.
	var cycleErr error
	if in.g.AnyDirty() {
		if cerr := in.runCycle(); cerr != nil {
			switch {
			case firstErr != nil:
				in.deliverError(cerr)
			case deferred:
				cycleErr = cerr
			default:
				firstErr = cerr
			}
		}
	}

	if deferred {
		return in.withCycleError(in.joinResults(results, errs), cycleErr), nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// joinResults unifies a mixed invocation into one future: synchronous values
// and errors are wrapped, futures awaited. The joined future rejects with
// the first error in registration order, after every observer's result has
// been awaited.
func (in *Instance) joinResults(results []any, errs []error) *domain.Future {
	futs := make([]*domain.Future, len(results))
	for i := range results {
		switch {
		case errs[i] != nil:
			futs[i] = domain.FailedFuture(errs[i])
		default:
			if f, ok := results[i].(*domain.Future); ok {
				futs[i] = f
			} else {
				futs[i] = domain.ResolvedFuture(results[i])
			}
		}
	}
	joined := schedule.Join(in.ctx, futs...)
	if len(futs) > 1 {
		return joined
	}
	out := domain.NewFuture()
	go func() {
		v, err := joined.Await(context.Background())
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(v.([]any)[0])
	}()
	return out
}

// withCycleError rejects the joined future with a post-trap cycle error once
// every observer result has settled. An observer failure surfacing through the
// join keeps priority; the cycle error then goes to subscribers instead.
func (in *Instance) withCycleError(joined *domain.Future, cycleErr error) *domain.Future {
	if cycleErr == nil {
		return joined
	}
	out := domain.NewFuture()
	go func() {
		if _, err := joined.Await(context.Background()); err != nil {
			in.deliverError(cycleErr)
			out.Reject(err)
			return
		}
		out.Reject(cycleErr)
	}()
	return out
}

// HasTrap reports whether at least one observer is registered for the name.
func (in *Instance) HasTrap(trap string) bool {
	return len(in.traps[trap]) > 0
}
