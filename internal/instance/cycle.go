package instance

import (
	"time"

	"github.com/arborlabs/arbor/internal/graph"
	"github.com/arborlabs/arbor/pkg/domain"
)

// runCycle executes one update cycle while the gate is held: evaluate the
// binding graph, reconcile the slot requests the pass emitted, then schedule
// notification if anything changed. The returned error is the cycle's first
// failure; the caller decides who receives it.
func (in *Instance) runCycle() error {
	pass := &passState{}
	in.pass = pass
	stats, err := in.g.Evaluate(in.await)

	if err == nil {
		err = in.children.Reconcile(pass.requests, in.recomputedNames(stats))
	}
	in.pass = nil

	if in.hooks.OnCycle != nil {
		in.hooks.OnCycle(in.ctx, &domain.CycleEvent{
			EventBase:       domain.EventBase{Timestamp: time.Now(), Type: domain.EventCycle},
			Definition:      in.def.Name,
			InstanceID:      in.id,
			Recomputed:      stats.Recomputed,
			Skipped:         stats.Skipped,
			Changed:         stats.AnyChanged(),
			ChildrenCreated: pass.created,
			ChildrenClosed:  pass.closed,
		})
	}

	if err == nil && stats.AnyChanged() {
		in.scheduleNotify()
	}
	return err
}

// recomputedNames maps the pass's re-executed handles to owner names, so the
// reconciler can tell a skipped construct (children untouched) from a
// re-executed one that stopped emitting a slot (children closed).
func (in *Instance) recomputedNames(stats *graph.PassStats) map[string]bool {
	names := make(map[string]bool, len(stats.Ran))
	for _, h := range stats.Ran {
		if in.g.NodeKind(h) == graph.KindRender {
			names[renderOwner] = true
			continue
		}
		names[in.g.Name(h)] = true
	}
	return names
}

// await is the cycle's single suspension point: every deferred binding that
// recomputed this pass resolves here, before any ordinary statement runs.
// Compute results that are not futures pass through unchanged.
func (in *Instance) await(pending []*graph.Pending) error {
	for _, p := range pending {
		f, ok := p.Value.(*domain.Future)
		if !ok {
			p.Resolved = p.Value
			continue
		}
		v, err := f.Await(in.ctx)
		if err != nil {
			return &domain.HandlerError{Binding: p.Name, Err: err}
		}
		p.Resolved = v
	}
	return nil
}

// scheduleNotify captures the cycle's render output while the gate is still
// held, then queues its delivery. Callbacks never run inside the mutating
// call that produced the change.
func (in *Instance) scheduleNotify() {
	// Observers are snapshotted here: a subscriber registered after this
	// cycle must not receive this cycle's output.
	observers := in.observers()
	if len(observers) == 0 {
		return
	}
	v, err := in.renderLocked()
	deliver := func() {
		for _, obs := range observers {
			if err != nil {
				if obs.OnError != nil {
					obs.OnError(err)
				}
				continue
			}
			if obs.OnUpdate != nil {
				obs.OnUpdate(v)
			}
		}
	}
	in.dispatch(deliver)
}

// deliverError routes an internally-raised cycle error to subscribers'
// OnError; with no subscriber it is logged, never dropped silently.
func (in *Instance) deliverError(err error) {
	obs := in.observers()
	if len(obs) == 0 {
		in.logger.Error("update cycle failed with no subscribers",
			"instance", in.id, "definition", in.def.Name, "error", err)
		return
	}
	deliver := func() {
		for _, o := range obs {
			if o.OnError != nil {
				o.OnError(err)
			}
		}
	}
	in.dispatch(deliver)
}

// dispatch queues a delivery callback. With a shared notifier deliveries ride
// its queue; otherwise the per-instance fallback queue preserves the order
// cycles completed in.
func (in *Instance) dispatch(f func()) {
	if in.notifier != nil {
		in.notifier.Enqueue(f)
		return
	}
	in.notifyMu.Lock()
	in.notifyQueue = append(in.notifyQueue, f)
	if in.notifyDraining {
		in.notifyMu.Unlock()
		return
	}
	in.notifyDraining = true
	in.notifyMu.Unlock()
	go in.drainNotifications()
}

func (in *Instance) drainNotifications() {
	for {
		in.notifyMu.Lock()
		if len(in.notifyQueue) == 0 {
			in.notifyDraining = false
			in.notifyMu.Unlock()
			return
		}
		f := in.notifyQueue[0]
		in.notifyQueue = in.notifyQueue[1:]
		in.notifyMu.Unlock()
		f()
	}
}
