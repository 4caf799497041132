package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventInstanceCreate EventType = "instance_create"
	EventInstanceClose  EventType = "instance_close"
	EventCycle          EventType = "cycle"
	EventTrap           EventType = "trap"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// InstanceEvent reports creation or closure of an actor instance.
type InstanceEvent struct {
	EventBase
	Definition string `json:"definition"`
	InstanceID string `json:"instance_id"`
}

// CycleEvent reports one completed update cycle.
type CycleEvent struct {
	EventBase
	Definition      string `json:"definition"`
	InstanceID      string `json:"instance_id"`
	Recomputed      int    `json:"recomputed"`
	Skipped         int    `json:"skipped"`
	Changed         bool   `json:"changed"`
	ChildrenCreated int    `json:"children_created,omitempty"`
	ChildrenClosed  int    `json:"children_closed,omitempty"`
}

// TrapEvent reports one trap invocation.
type TrapEvent struct {
	EventBase
	Definition string `json:"definition"`
	InstanceID string `json:"instance_id"`
	Trap       string `json:"trap"`
	IsError    bool   `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for runtime observability. All hooks are
// optional and are invoked synchronously on the mutating path; keep them
// cheap.
type LifecycleHooks struct {
	OnInstanceCreate func(context.Context, *InstanceEvent)
	OnInstanceClose  func(context.Context, *InstanceEvent)
	OnCycle          func(context.Context, *CycleEvent)
	OnTrap           func(context.Context, *TrapEvent)
}

// Observer is the callback pair registered through subscribe. OnUpdate
// receives the instance's render output after a mutating cycle that changed
// at least one binding; OnError receives errors raised by internally
// triggered recomputes. Both are delivered asynchronously, never within the
// synchronous call that produced the change.
type Observer struct {
	OnUpdate func(value any)
	OnError  func(err error)
}
