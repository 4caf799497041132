/*
Package ports defines the driven ports (interfaces) for the arbor runtime.

These interfaces decouple the supervision and persistence layers from
concrete backends, so the same runtime can run against in-memory state, the
filesystem, or Redis without changes to the core.

# Key Interfaces

  - DefinitionSource: resolves actor definitions by name.
  - SnapshotStore: persists and retrieves instance render snapshots.
  - DistributedLocker: coordinates instance access across replicas.
*/
package ports
