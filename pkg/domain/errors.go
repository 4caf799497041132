package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when an operation targets a Closing or Closed instance.
var ErrInvalidState = errors.New("invalid instance state")

// ErrNoSuchTrap is returned when a trap is sent but no handler observes it.
var ErrNoSuchTrap = errors.New("no such trap")

// ErrInstanceNotFound is returned when an instance ID cannot be found.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrDefinitionNotFound is returned when a definition name is not registered.
var ErrDefinitionNotFound = errors.New("definition not found")

// ErrSnapshotNotFound is returned by snapshot stores when no snapshot exists
// for an instance ID.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrCycleDivergence is reserved. Dependency cycles are legal and converge to
// last-known values, so the runtime never returns this error; it exists so
// hosts can match against the full taxonomy.
var ErrCycleDivergence = errors.New("dependency cycle divergence")

// InvalidStateError reports the operation and the lifecycle state that
// rejected it.
type InvalidStateError struct {
	Op    string
	State LifecycleState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: instance is %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// NoSuchTrapError reports a send to an unobserved trap name. Sending to an
// absent trap is an error condition, not a no-op, and never mutates state.
type NoSuchTrapError struct {
	Trap string
}

func (e *NoSuchTrapError) Error() string {
	return fmt.Sprintf("trap %q has no observers", e.Trap)
}

func (e *NoSuchTrapError) Is(target error) bool {
	return target == ErrNoSuchTrap
}

// HandlerError wraps an error thrown by a trap observer or a body statement
// during an update cycle. Exactly one party receives it: the send caller for
// trap errors, a subscriber's OnError for internal recompute errors, or the
// close caller for finally-block errors.
type HandlerError struct {
	Trap    string // set when the error came from a trap observer
	Binding string // set when the error came from a binding recompute
	Err     error
}

func (e *HandlerError) Error() string {
	switch {
	case e.Trap != "":
		return fmt.Sprintf("trap %q: %v", e.Trap, e.Err)
	case e.Binding != "":
		return fmt.Sprintf("binding %q: %v", e.Binding, e.Err)
	}
	return e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
