package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// read is a test helper standing in for the instance scope: it records the
// dependency and returns the last-known value.
func read(g *Graph, h Handle) any {
	g.Touch(h)
	return g.Value(h)
}

type countingTrace struct {
	recomputes map[string]int
	skips      map[string]int
}

func newCountingTrace() *countingTrace {
	return &countingTrace{recomputes: map[string]int{}, skips: map[string]int{}}
}

func (t *countingTrace) OnRecompute(name string) { t.recomputes[name]++ }
func (t *countingTrace) OnSkip(name string)      { t.skips[name]++ }

func noAwait(pending []*Pending) error { return nil }

func TestEvaluateTopologicalOrder(t *testing.T) {
	g := New()
	var order []string

	a := g.DeclareState("a", 1)
	// Declared before its dependency on purpose: order must follow the
	// graph, not declaration, once reads are recorded.
	c := g.DeclareComputed("c", false)
	b := g.DeclareComputed("b", false)

	g.Bind(c, func() (any, error) {
		order = append(order, "c")
		prev, _ := read(g, b).(int)
		return prev + 1, nil
	})
	g.Bind(b, func() (any, error) {
		order = append(order, "b")
		return read(g, a).(int) * 10, nil
	})

	// First pass: everything dirty, declaration order applies (c before b),
	// so c sees b's zero value once and the recorded reads fix the order
	// for the next pass.
	_, err := g.Evaluate(noAwait)
	require.NoError(t, err)

	order = nil
	g.SetSource(a, 2)
	stats, err := g.Evaluate(noAwait)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, order, "b must run before its reader c")
	assert.True(t, stats.AnyChanged())
	assert.Equal(t, 21, g.Value(c))
}

func TestEqualityShortCircuit(t *testing.T) {
	g := New()
	trace := newCountingTrace()
	g.SetTrace(trace)

	a := g.DeclareState("a", 3)
	even := g.DeclareComputed("even", false)
	label := g.DeclareComputed("label", false)

	g.Bind(even, func() (any, error) {
		return read(g, a).(int)%2 == 0, nil
	})
	g.Bind(label, func() (any, error) {
		if read(g, even).(bool) {
			return "even", nil
		}
		return "odd", nil
	})

	_, err := g.Evaluate(noAwait)
	require.NoError(t, err)
	assert.Equal(t, "odd", g.Value(label))

	// 3 -> 5: "even" recomputes but stays false, so "label" is skipped.
	g.SetSource(a, 5)
	_, err = g.Evaluate(noAwait)
	require.NoError(t, err)
	assert.Equal(t, 2, trace.recomputes["even"])
	assert.Equal(t, 1, trace.recomputes["label"], "label must not recompute when its read-set is unchanged")
}

func TestIdenticalRuleDrivesDirtiness(t *testing.T) {
	g := New()
	a := g.DeclareState("a", math.NaN())
	runs := 0
	c := g.DeclareComputed("c", false)
	g.Bind(c, func() (any, error) {
		runs++
		g.Touch(a)
		return runs, nil
	})

	_, err := g.Evaluate(noAwait)
	require.NoError(t, err)
	require.Equal(t, 1, runs)

	// NaN -> NaN is not a change.
	assert.False(t, g.SetSource(a, math.NaN()))

	// +0 -> -0 is a change.
	require.True(t, g.SetSource(a, 0.0))
	_, err = g.Evaluate(noAwait)
	require.NoError(t, err)
	require.Equal(t, 2, runs)

	assert.True(t, g.SetSource(a, math.Copysign(0, -1)))
	_, err = g.Evaluate(noAwait)
	require.NoError(t, err)
	assert.Equal(t, 3, runs)
}

func TestCycleConvergence(t *testing.T) {
	g := New()
	trigger := g.DeclareState("trigger", 0)
	a := g.DeclareComputed("a", false)
	b := g.DeclareComputed("b", false)

	// a reads b, b reads a: a static cycle. Each member sees the peer's
	// last-known value and runs exactly once per pass.
	g.Bind(a, func() (any, error) {
		read(g, trigger)
		prev, _ := read(g, b).(int)
		return prev + 1, nil
	})
	g.Bind(b, func() (any, error) {
		prev, _ := read(g, a).(int)
		return prev + 1, nil
	})

	_, err := g.Evaluate(noAwait)
	require.NoError(t, err)
	// Pass 1: a sees b=nil -> 1, b sees a=1 -> 2.
	assert.Equal(t, 1, g.Value(a))
	assert.Equal(t, 2, g.Value(b))

	for pass := 0; pass < 50; pass++ {
		g.SetSource(trigger, pass+1)
		_, err = g.Evaluate(noAwait)
		require.NoError(t, err)
	}
	// Each pass advances the pair by one step; no divergence, no stack
	// growth proportional to pass count.
	assert.Equal(t, 101, g.Value(a))
	assert.Equal(t, 102, g.Value(b))
	for _, h := range []Handle{trigger, a, b} {
		assert.False(t, g.Dirty(h), "no dangling dirty flags after a pass")
	}
}

func TestExplicitInputsAndIgnore(t *testing.T) {
	g := New()
	a := g.DeclareState("a", 1)
	b := g.DeclareState("b", 1)
	c := g.DeclareComputed("c", false)

	runs := 0
	g.Bind(c, func() (any, error) {
		runs++
		// Reads both, but only "a" is a declared input.
		return read(g, a).(int) + read(g, b).(int), nil
	})
	g.ResolveInputs(c, []string{"a"}, nil)

	_, err := g.Evaluate(noAwait)
	require.NoError(t, err)
	require.Equal(t, 1, runs)

	g.SetSource(b, 2)
	_, err = g.Evaluate(noAwait)
	require.NoError(t, err)
	assert.Equal(t, 1, runs, "change to a non-input must not recompute")

	g.SetSource(a, 2)
	_, err = g.Evaluate(noAwait)
	require.NoError(t, err)
	assert.Equal(t, 2, runs)

	// Ignore list: same effect, inferred reads minus the ignored name.
	d := g.DeclareComputed("d", false)
	druns := 0
	g.Bind(d, func() (any, error) {
		druns++
		return read(g, a).(int) + read(g, b).(int), nil
	})
	g.ResolveInputs(d, nil, []string{"b"})
	_, err = g.Evaluate(noAwait)
	require.NoError(t, err)
	require.Equal(t, 1, druns)

	g.SetSource(b, 7)
	_, err = g.Evaluate(noAwait)
	require.NoError(t, err)
	assert.Equal(t, 1, druns, "ignored capture must not be treated as a dependency")
}

func TestRefreshDoesNotPropagate(t *testing.T) {
	g := New()
	a := g.DeclareState("a", 1)
	render := g.DeclareRender()
	downstream := g.DeclareComputed("downstream", false)

	g.Bind(render, func() (any, error) {
		return read(g, a).(int) * 2, nil
	})
	runs := 0
	g.Bind(downstream, func() (any, error) {
		runs++
		g.Touch(render)
		return g.Value(render), nil
	})

	_, err := g.Evaluate(noAwait)
	require.NoError(t, err)
	require.Equal(t, 1, runs)

	// Dirty the render node only, then refresh it on demand: its reader
	// must not be re-triggered.
	g.MarkDirty(render)
	v, err := g.Refresh(render)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.False(t, g.Dirty(downstream))

	// And refreshing twice returns the cached value without recompute.
	v2, err := g.Refresh(render)
	require.NoError(t, err)
	assert.Equal(t, v, v2)
}

func TestDeferredReaderOfOrdinaryBindingStaysFresh(t *testing.T) {
	g := New()
	a := g.DeclareState("a", 1)
	ord := g.DeclareComputed("ord", false)
	late := g.DeclareComputed("late", true)

	g.Bind(ord, func() (any, error) {
		return read(g, a).(int) * 10, nil
	})
	g.Bind(late, func() (any, error) {
		return read(g, ord), nil
	})

	passThrough := func(pending []*Pending) error {
		for _, p := range pending {
			p.Resolved = p.Value
		}
		return nil
	}

	_, err := g.Evaluate(passThrough)
	require.NoError(t, err)
	require.Equal(t, 10, g.Value(ord))

	// The ordinary result lands after the hoisted batch already ran; a
	// follow-up batch in the same cycle must pick the deferred reader up.
	g.SetSource(a, 2)
	_, err = g.Evaluate(passThrough)
	require.NoError(t, err)
	assert.Equal(t, 20, g.Value(ord))
	assert.Equal(t, 20, g.Value(late), "deferred reader must see the value its dependency settled on")
	for h := 0; h < g.Len(); h++ {
		assert.False(t, g.Dirty(Handle(h)))
	}
}

func TestEvaluateErrorClearsDirty(t *testing.T) {
	g := New()
	a := g.DeclareState("a", 1)
	bad := g.DeclareComputed("bad", false)
	g.Bind(bad, func() (any, error) {
		read(g, a)
		return nil, assert.AnError
	})

	_, err := g.Evaluate(noAwait)
	require.Error(t, err)
	for h := 0; h < g.Len(); h++ {
		assert.False(t, g.Dirty(Handle(h)), "cycles never leave a dangling dirty state")
	}
}

func TestDeferredHoisting(t *testing.T) {
	g := New()
	var order []string

	a := g.DeclareState("a", 1)
	plain := g.DeclareComputed("plain", false)
	late := g.DeclareComputed("late", true)

	g.Bind(plain, func() (any, error) {
		order = append(order, "plain")
		read(g, a)
		return read(g, late), nil
	})
	g.Bind(late, func() (any, error) {
		order = append(order, "late")
		read(g, a)
		return "future-42", nil
	})

	awaited := 0
	await := func(pending []*Pending) error {
		awaited++
		for _, p := range pending {
			require.Equal(t, "future-42", p.Value)
			p.Resolved = 42
		}
		return nil
	}

	_, err := g.Evaluate(await)
	require.NoError(t, err)
	assert.Equal(t, 1, awaited, "one suspension point per cycle")
	assert.Equal(t, []string{"late", "plain"}, order, "deferred bindings hoist ahead of ordinary ones")
	assert.Equal(t, 42, g.Value(late))
	assert.Equal(t, 42, g.Value(plain))
}
