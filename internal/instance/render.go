package instance

import (
	"context"
	"time"

	"github.com/arborlabs/arbor/pkg/domain"
)

// enter serializes the operation behind the gate and rejects it once the
// instance is Closing or Closed. On success the caller holds the gate.
func (in *Instance) enter(ctx context.Context, op string) error {
	if in.terminal() {
		return &domain.InvalidStateError{Op: op, State: in.State()}
	}
	if err := in.gate.Enter(ctx); err != nil {
		if in.terminal() {
			return &domain.InvalidStateError{Op: op, State: in.State()}
		}
		return err
	}
	if in.terminal() {
		in.gate.Leave()
		return &domain.InvalidStateError{Op: op, State: in.State()}
	}
	return nil
}

// Render returns the instance's return-expression value, recomputed only if
// dirty, without propagating to dependents. Deferred-executing instances
// yield a *domain.Future instead of a plain value.
func (in *Instance) Render() (any, error) {
	if in.def.Deferred {
		return in.renderDeferred(), nil
	}
	if err := in.enter(in.ctx, "render"); err != nil {
		return nil, err
	}
	defer in.gate.Leave()
	return in.renderLocked()
}

// renderLocked refreshes the render node while the gate is held. A render
// value that is itself a compose-site ref resolves to the child's output.
func (in *Instance) renderLocked() (any, error) {
	v, err := in.g.Refresh(in.renderH)
	if err != nil {
		return nil, err
	}
	if ref, ok := v.(domain.ChildRef); ok {
		return ref.Value()
	}
	return v, nil
}

func (in *Instance) renderDeferred() *domain.Future {
	out := domain.NewFuture()
	go func() {
		if in.ready != nil {
			if _, err := in.ready.Await(in.ctx); err != nil {
				out.Reject(err)
				return
			}
		}
		if err := in.enter(in.ctx, "render"); err != nil {
			out.Reject(err)
			return
		}
		v, err := in.renderLocked()
		in.gate.Leave()
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(v)
	}()
	return out
}

// Inspect returns an introspection view of the dependency graph as of the
// most recent cycle.
func (in *Instance) Inspect() (domain.GraphInfo, error) {
	if err := in.enter(in.ctx, "inspect"); err != nil {
		return domain.GraphInfo{}, err
	}
	defer in.gate.Leave()
	return domain.GraphInfo{Definition: in.def.Name, Nodes: in.g.Snapshot()}, nil
}

// Snapshot captures the instance's current render output for persistence.
func (in *Instance) Snapshot() (domain.Snapshot, error) {
	v, err := in.Render()
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{
		InstanceID: in.id,
		Definition: in.def.Name,
		RenderedAt: time.Now(),
		Output:     v,
	}, nil
}
