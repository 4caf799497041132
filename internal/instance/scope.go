package instance

import (
	"fmt"

	"github.com/arborlabs/arbor/internal/graph"
	"github.com/arborlabs/arbor/internal/reconcile"
	"github.com/arborlabs/arbor/pkg/domain"
)

// renderOwner is the owner name attributed to slot requests emitted by the
// render expression.
const renderOwner = "(render)"

// scopeImpl is the execution context handed to binding, trap, and finally
// code. It is only valid for the duration of the call that received it.
// Reads go through the graph's tracking hooks, so a scope used from a
// recompute records dependencies and a scope used from a trap does not.
type scopeImpl struct {
	in    *Instance
	owner string // binding name for attribution of compose-site requests

	// mutable is set for trap and finally scopes, where Set is legal.
	mutable bool
}

var _ domain.Scope = (*scopeImpl)(nil)

func (s *scopeImpl) Get(name string) any {
	h, ok := s.in.bindH[name]
	if !ok {
		return nil
	}
	s.in.g.Touch(h)
	return s.in.g.Value(h)
}

func (s *scopeImpl) Set(name string, value any) error {
	if !s.mutable {
		return fmt.Errorf("binding %q: set is only legal from trap handlers", name)
	}
	h, ok := s.in.bindH[name]
	if !ok {
		return fmt.Errorf("no binding named %q", name)
	}
	if s.in.g.NodeKind(h) != graph.KindState {
		return fmt.Errorf("binding %q is computed and cannot be set", name)
	}
	s.in.g.SetSource(h, value)
	return nil
}

func (s *scopeImpl) Arg(i int) any {
	if i < 0 || i >= len(s.in.argH) {
		return nil
	}
	s.in.g.Touch(s.in.argH[i])
	return s.in.g.Value(s.in.argH[i])
}

func (s *scopeImpl) NumArgs() int { return len(s.in.args) }

func (s *scopeImpl) UseBranch(site, arm string, def *domain.ActorDefinition, args ...any) domain.ChildRef {
	return s.use(reconcile.SlotKey{Site: site, Kind: reconcile.KindBranch, Key: arm}, def, args)
}

func (s *scopeImpl) UseAt(site string, index int, def *domain.ActorDefinition, args ...any) domain.ChildRef {
	return s.use(reconcile.SlotKey{Site: site, Kind: reconcile.KindPositional, Index: index}, def, args)
}

func (s *scopeImpl) UseKeyed(site string, key any, def *domain.ActorDefinition, args ...any) domain.ChildRef {
	return s.use(reconcile.SlotKey{Site: site, Kind: reconcile.KindKeyed, Key: key}, def, args)
}

func (s *scopeImpl) UseSlot(site string, key any, def *domain.ActorDefinition, args ...any) domain.ChildRef {
	return s.use(reconcile.SlotKey{Site: site, Kind: reconcile.KindSingle, Key: key}, def, args)
}

// use registers a slot request on the active pass and returns a placeholder.
// The child is materialized by the reconciler at the end of the pass, so the
// ref resolves only from render time onward. Outside a pass (the render
// refresh path) the request is not registered: rendering never reshapes the
// child set.
func (s *scopeImpl) use(key reconcile.SlotKey, def *domain.ActorDefinition, args []any) domain.ChildRef {
	if s.in.pass != nil {
		s.in.pass.requests = append(s.in.pass.requests, reconcile.Request{
			Owner: s.owner,
			Slot:  key,
			Def:   def,
			Args:  args,
		})
	}
	return &childRef{set: s.in.children, key: key}
}

func (s *scopeImpl) RequestUpdate() {
	in := s.in
	go func() {
		if err := in.gate.Enter(in.ctx); err != nil {
			return
		}
		defer in.gate.Leave()
		if in.terminal() {
			return
		}
		in.g.MarkDirty(in.renderH)
		if err := in.runCycle(); err != nil {
			in.deliverError(err)
		}
	}()
}

// childRef resolves a compose site to the composed child's render output.
type childRef struct {
	set *reconcile.Set
	key reconcile.SlotKey
}

func (r *childRef) Value() (any, error) {
	child, ok := r.set.Resolve(r.key)
	if !ok {
		return nil, fmt.Errorf("slot %s/%v at site %q holds no instance", r.key.Kind, r.key.Key, r.key.Site)
	}
	return child.Render()
}
