// Package instance implements the actor instance runtime: one running,
// stateful unit created from a definition. An instance owns its binding
// graph, its trap observers, and the children materialized by its compose
// sites; it drives the graph engine once per update cycle and hands the
// cycle's slot requests to the reconciler.
//
// All mutating operations on one instance are serialized through a
// single-flight gate in strict arrival order. Subscription callbacks are
// never invoked inside the mutating call that produced the change; they are
// delivered through the runtime's shared notifier.
package instance
