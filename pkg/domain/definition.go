package domain

import "context"

// ComputeFunc produces the value of a computed binding or of the render
// expression. Reads performed through the scope are recorded as dependencies
// for the next update cycle.
type ComputeFunc func(s Scope) (any, error)

// TrapFunc handles one trap invocation. The context is advisory: it is
// cancelled when the owning instance closes, or when a single-flight trap is
// superseded by a newer invocation. Handlers should stop work promptly but
// are not forcibly terminated.
type TrapFunc func(ctx context.Context, s Scope, args ...any) (any, error)

// FinallyFunc runs during close, after all children have been closed. Errors
// propagate to the caller of close.
type FinallyFunc func(ctx context.Context, s Scope) error

// BindingDecl declares one named slot inside an actor definition.
//
// A declaration with a Compute function is a computed binding: it recomputes
// whenever any value it read on its previous evaluation changes. A
// declaration without Compute is a state binding: it holds Initial until a
// trap handler overwrites it through Scope.Set.
type BindingDecl struct {
	Name string

	// Compute derives the value. Nil for state bindings.
	Compute ComputeFunc

	// Initial seeds a state binding. Ignored for computed bindings.
	Initial any

	// Deferred marks the binding as deferred-executing: Compute returns a
	// future, and the scheduler resolves all deferred bindings before any
	// ordinary statement of the same cycle runs.
	Deferred bool

	// Inputs, when non-nil, replaces inferred reads with an explicit
	// dependency list.
	Inputs []string

	// Ignore suppresses specific names from being treated as dependencies
	// even though the expression reads them.
	Ignore []string
}

// Computed reports whether the binding derives its value.
func (b BindingDecl) Computed() bool {
	return b.Compute != nil
}

// TrapDecl declares one trap observer. Multiple declarations may observe the
// same name; they are invoked in declaration order.
type TrapDecl struct {
	Name    string
	Handler TrapFunc

	// Deferred marks the observer as deferred-executing: its result is a
	// future and send returns a future unifying all observer results.
	Deferred bool

	// SingleFlight marks an effect-style observer: a newer invocation
	// cancels the context of the one still in flight.
	SingleFlight bool
}

// ActorDefinition is the immutable template an instance is created from.
// Definitions are built once (typically through the dsl package) and never
// mutated afterwards.
type ActorDefinition struct {
	Name string

	// Bindings execute in declaration order within each update cycle.
	Bindings []BindingDecl

	// Traps are observer declarations, keyed by name at instance
	// construction time.
	Traps []TrapDecl

	// Render is the instance's return expression. Required.
	Render ComputeFunc

	// Finally is the optional close block.
	Finally FinallyFunc

	// Deferred marks the whole instance as deferred-executing: creation
	// suspends until the transitive closure of deferred static bindings
	// resolves, and render returns a future.
	Deferred bool
}

// Scope is the execution context passed to binding, trap, and finally code.
// It is only valid for the duration of the call it was handed to.
type Scope interface {
	// Get returns the current value of a binding declared in this
	// instance's own static scope and records the read as a dependency.
	// Unknown names yield nil. Bindings of enclosing or child instances
	// are never visible.
	Get(name string) any

	// Set overwrites a state binding. It is legal only from trap handlers
	// and returns an error for computed bindings. Writing an Identical
	// value is a no-op and dirties nothing.
	Set(name string, value any) error

	// Arg returns the i'th element of the current argument tuple and
	// records it as a dependency. Out-of-range indexes yield nil.
	Arg(i int) any

	// NumArgs returns the arity of the current argument tuple.
	NumArgs() int

	// UseBranch composes a child instance at a branch site. Arms of one
	// site are mutually exclusive; when the taken arm changes, the new
	// arm's instance is created before the old arm's is closed.
	UseBranch(site, arm string, def *ActorDefinition, args ...any) ChildRef

	// UseAt composes a child at a positional sequence site. Position
	// identity, not value identity, anchors the child across cycles.
	UseAt(site string, index int, def *ActorDefinition, args ...any) ChildRef

	// UseKeyed composes a child at a keyed sequence site. The key must be
	// comparable; existing keys retain their instance and receive an
	// update with the new arguments.
	UseKeyed(site string, key any, def *ActorDefinition, args ...any) ChildRef

	// UseSlot composes a single keyed child. When the key changes, the
	// replacement is created before the previous occupant is closed.
	UseSlot(site string, key any, def *ActorDefinition, args ...any) ChildRef

	// RequestUpdate queues an update cycle for the owning instance with
	// its current arguments. The cycle runs after the current one
	// completes; it is never nested.
	RequestUpdate()
}

// ChildRef is the placeholder a compose site evaluates to. The child instance
// it names is materialized by the reconciler at the end of the pass, so the
// ref resolves to the child's render output only from render time onward.
type ChildRef interface {
	// Value returns the composed child's current render output.
	Value() (any, error)
}
