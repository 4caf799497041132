package domain

// LifecycleState is the lifecycle position of an actor instance.
type LifecycleState string

const (
	StateUninitialized LifecycleState = "uninitialized" // allocated, first cycle not yet run
	StateActive        LifecycleState = "active"        // normal operation
	StateClosing       LifecycleState = "closing"       // close in progress, children being torn down
	StateClosed        LifecycleState = "closed"        // unusable; all resources released
)

// Terminal reports whether the state admits no further mutating operations.
func (s LifecycleState) Terminal() bool {
	return s == StateClosing || s == StateClosed
}
