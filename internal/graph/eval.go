package graph

import (
	"container/heap"

	"github.com/arborlabs/arbor/pkg/domain"
)

// PassStats summarizes one evaluation pass.
type PassStats struct {
	Recomputed int
	Skipped    int
	Changed    []Handle
	Ran        []Handle // every node that re-executed this pass
}

// AnyChanged reports whether the pass changed at least one binding value.
func (s *PassStats) AnyChanged() bool { return len(s.Changed) > 0 }

// Pending is one deferred binding whose compute result must be resolved
// before the rest of the cycle may run. The awaiter fills Resolved.
type Pending struct {
	Handle   Handle
	Name     string
	Value    any // the raw compute result, typically a future
	Resolved any
}

// Awaiter resolves all pending deferred bindings of one cycle at a single
// suspension point. Suspension is never threaded through individual
// statements.
type Awaiter func(pending []*Pending) error

// Evaluate runs one update cycle: deferred dirty bindings first (resolved in
// one batch through the awaiter), then ordinary dirty bindings in dependency
// order. A deferred binding dirtied by an ordinary result runs in a follow-up
// hoisted batch of the same cycle, so it never goes stale; every binding still
// runs at most once. Every dirty flag is clear when Evaluate returns, on
// success and on error alike.
func (g *Graph) Evaluate(await Awaiter) (*PassStats, error) {
	stats := &PassStats{}
	defer func() {
		for _, n := range g.nodes {
			n.dirty = false
		}
	}()

	ran := make(map[Handle]bool, len(g.nodes))

	for sweep := 0; ; sweep++ {
		order := g.passOrder()

		// Deferred static bindings are logically hoisted ahead of ordinary
		// ones even though declared inline.
		var pending []*Pending
		for _, h := range order {
			n := g.nodes[h]
			if !n.dirty || !n.deferred || n.compute == nil || ran[h] {
				continue
			}
			v, err := g.recompute(h)
			if err != nil {
				return stats, &domain.HandlerError{Binding: n.name, Err: err}
			}
			stats.Recomputed++
			stats.Ran = append(stats.Ran, h)
			ran[h] = true
			pending = append(pending, &Pending{Handle: h, Name: n.name, Value: v})
		}
		if len(pending) > 0 {
			if err := await(pending); err != nil {
				return stats, err
			}
			for _, p := range pending {
				g.commit(p.Handle, p.Resolved, stats)
			}
		}

		for _, h := range order {
			n := g.nodes[h]
			if n.deferred || ran[h] {
				continue // handled by a hoisted batch, or already ran
			}
			if !n.dirty {
				if n.compute != nil && sweep == 0 {
					stats.Skipped++
					if g.trace != nil {
						g.trace.OnSkip(n.name)
					}
				}
				continue
			}
			n.dirty = false
			switch n.kind {
			case KindArg, KindState:
				// The caller already stored the new value; fan out.
				stats.Changed = append(stats.Changed, h)
				g.markReaders(h)
			default:
				v, err := g.recompute(h)
				if err != nil {
					return stats, &domain.HandlerError{Binding: n.name, Err: err}
				}
				stats.Recomputed++
				stats.Ran = append(stats.Ran, h)
				ran[h] = true
				g.commit(h, v, stats)
			}
		}

		if !g.pendingDeferred(ran) {
			return stats, nil
		}
	}
}

// pendingDeferred reports whether a deferred binding was dirtied during this
// cycle without having run yet. Deferred bindings that already ran and were
// re-dirtied are genuine cycle members; they keep their last-known value.
func (g *Graph) pendingDeferred(ran map[Handle]bool) bool {
	for h, n := range g.nodes {
		if n.deferred && n.dirty && n.compute != nil && !ran[Handle(h)] {
			return true
		}
	}
	return false
}

// Refresh recomputes a single node on demand if it is dirty, without
// propagating to its dependents. This is the render path: recomputation
// triggered as a side effect of producing output must not re-trigger
// propagation.
func (g *Graph) Refresh(h Handle) (any, error) {
	n := g.nodes[h]
	if !n.dirty || n.compute == nil {
		return n.value, nil
	}
	v, err := g.recompute(h)
	if err != nil {
		return nil, &domain.HandlerError{Binding: n.name, Err: err}
	}
	n.dirty = false
	n.value = v
	n.hasValue = true
	return v, nil
}

// recompute runs the node's compute function with read tracking active. The
// recorded read-set replaces the previous one only on success, so a throwing
// binding keeps its last-known dependencies.
func (g *Graph) recompute(h Handle) (any, error) {
	n := g.nodes[h]
	g.readBuf = g.readBuf[:0]
	g.tracking = true
	v, err := n.compute()
	g.tracking = false
	if err != nil {
		return nil, err
	}
	if g.trace != nil {
		g.trace.OnRecompute(n.name)
	}
	if n.explicit == nil {
		n.reads = dedup(g.readBuf)
	}
	return v, nil
}

// commit stores a freshly computed value, short-circuiting propagation when
// it compares Identical to the previous one.
func (g *Graph) commit(h Handle, v any, stats *PassStats) {
	n := g.nodes[h]
	n.dirty = false
	if n.hasValue && domain.Identical(v, n.value) {
		return
	}
	n.value = v
	n.hasValue = true
	stats.Changed = append(stats.Changed, h)
	g.markReaders(h)
}

// markReaders dirties every node whose effective read-set contains h. A
// reader that already ran this pass stays ran: bindings evaluate exactly once
// per cycle, and cycle members tolerate last-known values by design.
func (g *Graph) markReaders(h Handle) {
	for r := range g.nodes {
		rh := Handle(r)
		if rh == h {
			continue
		}
		if contains(g.effectiveReads(rh), h) {
			g.nodes[rh].dirty = true
		}
	}
}

func dedup(hs []Handle) []Handle {
	if len(hs) < 2 {
		return append([]Handle(nil), hs...)
	}
	seen := make(map[Handle]struct{}, len(hs))
	out := make([]Handle, 0, len(hs))
	for _, h := range hs {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// passOrder computes the evaluation order for one pass: topological over the
// condensation of strongly connected components, deps first, ties broken by
// declaration order, members of one component in declaration order.
func (g *Graph) passOrder() []Handle {
	comp := g.tarjan()

	nComps := 0
	for _, c := range comp {
		if c+1 > nComps {
			nComps = c + 1
		}
	}

	members := make([][]Handle, nComps)
	minOrder := make([]int, nComps)
	for i := range minOrder {
		minOrder[i] = int(^uint(0) >> 1)
	}
	for h := range g.nodes {
		c := comp[h]
		members[c] = append(members[c], Handle(h))
		if g.nodes[h].order < minOrder[c] {
			minOrder[c] = g.nodes[h].order
		}
	}

	// Condensation edges: dependency component -> reader component.
	succ := make([]map[int]struct{}, nComps)
	indeg := make([]int, nComps)
	for h := range g.nodes {
		rc := comp[h]
		for _, dep := range g.effectiveReads(Handle(h)) {
			dc := comp[dep]
			if dc == rc {
				continue
			}
			if succ[dc] == nil {
				succ[dc] = make(map[int]struct{})
			}
			if _, ok := succ[dc][rc]; !ok {
				succ[dc][rc] = struct{}{}
				indeg[rc]++
			}
		}
	}

	// Kahn with a min-heap on declaration order keeps independent
	// components in declaration order.
	pq := &compHeap{order: minOrder}
	for c := 0; c < nComps; c++ {
		if indeg[c] == 0 {
			heap.Push(pq, c)
		}
	}
	out := make([]Handle, 0, len(g.nodes))
	for pq.Len() > 0 {
		c := heap.Pop(pq).(int)
		out = append(out, members[c]...)
		for next := range succ[c] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(pq, next)
			}
		}
	}
	return out
}

// tarjan assigns a strongly-connected-component id to every node over the
// depends-on edges. Iterative to keep pass cost independent of Go stack
// depth.
func (g *Graph) tarjan() []int {
	n := len(g.nodes)
	const unvisited = -1
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	comp := make([]int, n)
	for i := range index {
		index[i] = unvisited
		comp[i] = unvisited
	}

	var stack []int
	next := 0
	nComps := 0

	type frame struct {
		v    int
		deps []Handle
		i    int
	}
	for start := 0; start < n; start++ {
		if index[start] != unvisited {
			continue
		}
		frames := []frame{{v: start, deps: g.effectiveReads(Handle(start))}}
		index[start] = next
		low[start] = next
		next++
		stack = append(stack, start)
		onStack[start] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			advanced := false
			for f.i < len(f.deps) {
				w := int(f.deps[f.i])
				f.i++
				if index[w] == unvisited {
					index[w] = next
					low[w] = next
					next++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{v: w, deps: g.effectiveReads(Handle(w))})
					advanced = true
					break
				}
				if onStack[w] && index[w] < low[f.v] {
					low[f.v] = index[w]
				}
			}
			if advanced {
				continue
			}
			v := f.v
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].v
				if low[v] < low[parent] {
					low[parent] = low[v]
				}
			}
			if low[v] == index[v] {
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp[w] = nComps
					if w == v {
						break
					}
				}
				nComps++
			}
		}
	}
	return comp
}

type compHeap struct {
	order []int
	items []int
}

func (h *compHeap) Len() int            { return len(h.items) }
func (h *compHeap) Less(i, j int) bool  { return h.order[h.items[i]] < h.order[h.items[j]] }
func (h *compHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *compHeap) Push(x any)          { h.items = append(h.items, x.(int)) }
func (h *compHeap) Pop() any {
	x := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return x
}
