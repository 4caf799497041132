// Package middleware provides composable wrappers for snapshot stores:
// encryption at rest and PII masking.
package middleware

import "github.com/arborlabs/arbor/pkg/ports"

// Middleware allows wrapping a SnapshotStore to add behavior.
type Middleware func(ports.SnapshotStore) ports.SnapshotStore
