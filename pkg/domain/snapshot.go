package domain

import "time"

// Snapshot is an observational record of an instance: its definition name and
// the render output produced by its most recent mutating cycle. Snapshots are
// what persistence adapters store; they do not capture closures and cannot
// resurrect a live instance.
type Snapshot struct {
	InstanceID string    `json:"instance_id"`
	Definition string    `json:"definition"`
	RenderedAt time.Time `json:"rendered_at"`
	Output     any       `json:"output"`
}

// GraphInfo is an introspection view of one instance's dependency graph.
type GraphInfo struct {
	Definition string          `json:"definition"`
	Nodes      []GraphNodeInfo `json:"nodes"`
}

// GraphNodeInfo describes one binding in the graph snapshot. Reads holds the
// names recorded during the binding's most recent evaluation.
type GraphNodeInfo struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"` // "arg", "state", "computed", "render"
	Deferred bool     `json:"deferred,omitempty"`
	Reads    []string `json:"reads,omitempty"`
	Value    string   `json:"value,omitempty"`
}
