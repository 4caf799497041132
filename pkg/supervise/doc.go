/*
Package supervise orchestrates named, long-lived instances on top of a
Runtime.

A Supervisor resolves definitions through a ports.DefinitionSource, spawns
instances on demand under caller-chosen IDs, and serializes access per ID
with reference-counted local locks plus an optional distributed locker for
multi-replica deployments. When a snapshot store is configured, the latest
render output is persisted after every mutating operation.
*/
package supervise
