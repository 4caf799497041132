package graph

import (
	"fmt"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Handle indexes a binding in the arena.
type Handle int

// None is the zero value for an absent handle.
const None Handle = -1

// Kind classifies a node in the arena.
type Kind uint8

const (
	KindArg      Kind = iota // implicit argument binding
	KindState                // externally written source binding
	KindComputed             // derived binding
	KindRender               // the instance's return expression
)

func (k Kind) String() string {
	switch k {
	case KindArg:
		return "arg"
	case KindState:
		return "state"
	case KindComputed:
		return "computed"
	case KindRender:
		return "render"
	}
	return "unknown"
}

// Trace receives per-node instrumentation callbacks. All methods may be
// called from the evaluating goroutine only.
type Trace interface {
	OnRecompute(name string)
	OnSkip(name string)
}

type node struct {
	name     string
	kind     Kind
	order    int // declaration order; breaks ties among independent bindings
	deferred bool

	compute func() (any, error) // nil for arg/state nodes

	explicit []Handle // explicit input list; nil means inferred from reads
	ignore   map[Handle]struct{}

	value    any
	hasValue bool
	dirty    bool

	reads []Handle // read-set recorded during the last evaluation
}

// Graph is the per-instance arena of bindings. It is not safe for concurrent
// use; the instance runtime serializes access through its update gate.
type Graph struct {
	nodes  []*node
	byName map[string]Handle

	tracking bool
	readBuf  []Handle

	trace Trace
}

// New creates an empty arena.
func New() *Graph {
	return &Graph{byName: make(map[string]Handle)}
}

// SetTrace installs an instrumentation sink. A nil trace disables it.
func (g *Graph) SetTrace(t Trace) { g.trace = t }

func (g *Graph) declare(name string, kind Kind, deferred bool) Handle {
	h := Handle(len(g.nodes))
	g.nodes = append(g.nodes, &node{
		name:     name,
		kind:     kind,
		order:    len(g.nodes),
		deferred: deferred,
	})
	if name != "" {
		g.byName[name] = h
	}
	return h
}

// DeclareArg declares the implicit binding for argument index i. Argument
// dirtiness rides the same machinery as every other dependency.
func (g *Graph) DeclareArg(i int) Handle {
	return g.declare(fmt.Sprintf("arg%d", i), KindArg, false)
}

// DeclareState declares a source binding seeded with an initial value.
func (g *Graph) DeclareState(name string, initial any) Handle {
	h := g.declare(name, KindState, false)
	n := g.nodes[h]
	n.value = initial
	n.hasValue = true
	return h
}

// DeclareComputed declares a derived binding. Its compute function is
// attached later via Bind, once the evaluation scope exists.
func (g *Graph) DeclareComputed(name string, deferred bool) Handle {
	h := g.declare(name, KindComputed, deferred)
	g.nodes[h].dirty = true // everything computed is dirty on the first pass
	return h
}

// DeclareRender declares the render expression node.
func (g *Graph) DeclareRender() Handle {
	h := g.declare("", KindRender, false)
	g.nodes[h].dirty = true
	return h
}

// Bind attaches the compute function for a derived or render node.
func (g *Graph) Bind(h Handle, compute func() (any, error)) {
	g.nodes[h].compute = compute
}

// ResolveInputs installs the explicit input list and ignore set for a node.
// Unknown names are dropped: they can never dirty anything in this scope.
func (g *Graph) ResolveInputs(h Handle, inputs, ignore []string) {
	n := g.nodes[h]
	if inputs != nil {
		n.explicit = make([]Handle, 0, len(inputs))
		for _, name := range inputs {
			if dep, ok := g.byName[name]; ok {
				n.explicit = append(n.explicit, dep)
			}
		}
	}
	if len(ignore) > 0 {
		n.ignore = make(map[Handle]struct{}, len(ignore))
		for _, name := range ignore {
			if dep, ok := g.byName[name]; ok {
				n.ignore[dep] = struct{}{}
			}
		}
	}
}

// Lookup resolves a binding name to its handle.
func (g *Graph) Lookup(name string) (Handle, bool) {
	h, ok := g.byName[name]
	return h, ok
}

// Name returns the declared name of a node.
func (g *Graph) Name(h Handle) string { return g.nodes[h].name }

// Kind returns the node's kind.
func (g *Graph) NodeKind(h Handle) Kind { return g.nodes[h].kind }

// Deferred reports whether the node is deferred-executing.
func (g *Graph) Deferred(h Handle) bool { return g.nodes[h].deferred }

// Value returns the node's last-known value. During a pass this is exactly
// the cycle tie-break rule: a not-yet-recomputed peer yields its value from
// the previous cycle.
func (g *Graph) Value(h Handle) any { return g.nodes[h].value }

// Touch records a dependency read when evaluation tracking is active.
func (g *Graph) Touch(h Handle) {
	if g.tracking {
		g.readBuf = append(g.readBuf, h)
	}
}

// SetSource overwrites the value of an arg or state node. Returns true when
// the write changed the value per the identity-preserving equality rule; the
// node is then marked dirty so the next pass propagates it.
func (g *Graph) SetSource(h Handle, v any) bool {
	n := g.nodes[h]
	if n.hasValue && domain.Identical(v, n.value) {
		return false
	}
	n.value = v
	n.hasValue = true
	n.dirty = true
	return true
}

// MarkDirty forces the node to recompute on the next pass.
func (g *Graph) MarkDirty(h Handle) { g.nodes[h].dirty = true }

// Dirty reports the node's dirty flag.
func (g *Graph) Dirty(h Handle) bool { return g.nodes[h].dirty }

// AnyDirty reports whether any node needs recomputation.
func (g *Graph) AnyDirty() bool {
	for _, n := range g.nodes {
		if n.dirty {
			return true
		}
	}
	return false
}

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int { return len(g.nodes) }

// Release drops all values and edges. The arena is unusable afterwards.
func (g *Graph) Release() {
	g.nodes = nil
	g.byName = nil
	g.readBuf = nil
}

// effectiveReads returns the dependency sources of n: the explicit input
// list when declared, otherwise the recorded read-set, minus ignores and
// self-reads.
func (g *Graph) effectiveReads(h Handle) []Handle {
	n := g.nodes[h]
	src := n.reads
	if n.explicit != nil {
		src = n.explicit
	}
	if len(n.ignore) == 0 && !contains(src, h) {
		return src
	}
	out := make([]Handle, 0, len(src))
	for _, dep := range src {
		if dep == h {
			continue
		}
		if _, skip := n.ignore[dep]; skip {
			continue
		}
		out = append(out, dep)
	}
	return out
}

func contains(hs []Handle, h Handle) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}

// Snapshot returns an introspection view of the arena.
func (g *Graph) Snapshot() []domain.GraphNodeInfo {
	infos := make([]domain.GraphNodeInfo, 0, len(g.nodes))
	for h, n := range g.nodes {
		info := domain.GraphNodeInfo{
			Name:     n.name,
			Kind:     n.kind.String(),
			Deferred: n.deferred,
		}
		if n.kind == KindRender {
			info.Name = "(render)"
		}
		for _, dep := range g.effectiveReads(Handle(h)) {
			name := g.nodes[dep].name
			if name == "" {
				name = "(render)"
			}
			info.Reads = append(info.Reads, name)
		}
		if n.hasValue {
			info.Value = fmt.Sprintf("%v", n.value)
		}
		infos = append(infos, info)
	}
	return infos
}
