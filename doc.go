/*
Package arbor is a reactive execution runtime for stateful actor instances
built on an incremental dependency graph.

Each actor is described by a declarative definition: named bindings (plain
state or computed expressions), traps that mutate state in response to
messages, and a render expression that produces the instance's observable
output. The runtime tracks which bindings read which, so an update cycle
recomputes only what a change can actually reach.

# Concept

An instance is a live dependency graph plus a serialized mutation gate. All
mutating operations (Update, Send, internally requested refreshes) run one
at a time; each runs a cycle that re-evaluates dirty bindings in dependency
order, reconciles composed child instances with minimal churn, and, when the
rendered value changed, notifies subscribers asynchronously. Reads (Render,
Inspect, Snapshot) never propagate recomputation: Render refreshes a stale
return expression in place without dirtying anything downstream.

# Key Features

  - Incremental evaluation: bindings recompute only when an effective input
    changed, with identity-preserving equality to suppress no-op churn.
  - Structural composition: branch, positional, keyed, and single-slot
    children are created and closed by the reconciler, never by hand.
  - Trap dispatch: observers run in registration order; deferred observers
    unify into a future, and single-flight observers cancel a predecessor
    still in flight.
  - Asynchronous notification: subscribers are never called on the caller's
    stack, so a subscriber may call back into the instance freely.

# Usage

Build a definition with the dsl package, then spawn it through a Runtime:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/arborlabs/arbor"
		"github.com/arborlabs/arbor/pkg/domain"
		"github.com/arborlabs/arbor/pkg/dsl"
	)

	func main() {
		def := dsl.Define("counter").
			State("count", 0).
			On("bump", func(ctx context.Context, s domain.Scope, args ...any) (any, error) {
				n := s.Get("count").(int)
				return nil, s.Set("count", n+1)
			}).
			Render(func(s domain.Scope) (any, error) {
				return s.Get("count"), nil
			}).
			MustBuild()

		rt := arbor.New()
		defer rt.Close()

		ctx := context.Background()
		h, err := rt.Spawn(ctx, def)
		if err != nil {
			log.Fatal(err)
		}

		if _, err := h.Send(ctx, "bump"); err != nil {
			log.Fatal(err)
		}
		out, _ := h.Render()
		fmt.Println(out) // 1
	}

# Composition

A render or computed expression composes children through the Scope's
UseBranch, UseAt, UseKeyed, and UseSlot calls. The reconciler diffs the
requested set against the live set after every cycle: keyed children move
without being rebuilt, branch children are created before the losing branch
closes, and children of bindings the cycle skipped are left untouched.

# Persistence and Supervision

The pkg/ports interfaces (SnapshotStore, DefinitionSource, DistributedLocker)
decouple the runtime from storage. The pkg/adapters tree ships in-memory and
Redis implementations plus an HTTP surface, and pkg/supervise manages
spawn-on-demand instances with snapshot persistence across processes.
*/
package arbor
