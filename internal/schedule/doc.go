/*
Package schedule sequences update cycles and subscription delivery.

A per-instance Gate serializes mutating calls in strict arrival order, a
Notifier delivers subscription callbacks on its own goroutine so they never
run inside the call that produced the change, and Join unifies the
domain.Future results of a multi-observer trap invocation. A suspended cycle
holds only its own instance's gate, so deferred work never blocks unrelated
instances.
*/
package schedule
