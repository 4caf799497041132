package arbor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/dsl"
	"github.com/arborlabs/arbor/pkg/observability"
)

func counterDef(t *testing.T) *domain.ActorDefinition {
	t.Helper()
	return dsl.Define("counter").
		State("count", 0).
		On("bump", func(ctx context.Context, s domain.Scope, args ...any) (any, error) {
			n := s.Get("count").(int)
			return n + 1, s.Set("count", n+1)
		}).
		And().
		Render(func(s domain.Scope) (any, error) {
			return s.Get("count"), nil
		}).
		MustBuild()
}

func TestRuntimeSpawnRendersSynchronously(t *testing.T) {
	rt := arbor.New()
	defer rt.Close()

	h, err := rt.Spawn(context.Background(), counterDef(t))
	require.NoError(t, err)

	assert.Equal(t, "counter", h.Definition())
	assert.Equal(t, domain.StateActive, h.State())

	out, err := h.Render()
	require.NoError(t, err)
	assert.Equal(t, 0, out)
}

func TestRuntimeRejectsInvalidDefinition(t *testing.T) {
	rt := arbor.New()
	defer rt.Close()

	def := &domain.ActorDefinition{Name: "broken"}
	_, err := rt.Spawn(context.Background(), def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRuntimeSendAndRender(t *testing.T) {
	rt := arbor.New()
	defer rt.Close()

	ctx := context.Background()
	h, err := rt.Spawn(ctx, counterDef(t))
	require.NoError(t, err)

	assert.True(t, h.HasTrap("bump"))
	assert.False(t, h.HasTrap("missing"))

	got, err := h.Send(ctx, "bump")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	out, err := h.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestRuntimeSubscriberSeesAsyncDelivery(t *testing.T) {
	rt := arbor.New()
	defer rt.Close()

	ctx := context.Background()
	h, err := rt.Spawn(ctx, counterDef(t))
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []any
	done := make(chan struct{})
	cancel := h.Subscribe(domain.Observer{
		OnUpdate: func(v any) {
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
			if v == 2 {
				close(done)
			}
		},
	})
	defer cancel()

	_, err = h.Send(ctx, "bump")
	require.NoError(t, err)
	_, err = h.Send(ctx, "bump")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never observed the second update")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{1, 2}, seen)
}

func TestRuntimeCloseTearsDownInstances(t *testing.T) {
	rt := arbor.New()

	ctx := context.Background()
	var mu sync.Mutex
	var order []string

	closing := func(name string) *domain.ActorDefinition {
		return dsl.Define(name).
			Render(func(s domain.Scope) (any, error) { return name, nil }).
			Finally(func(ctx context.Context, s domain.Scope) error {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil
			}).
			MustBuild()
	}

	first, err := rt.Spawn(ctx, closing("first"))
	require.NoError(t, err)
	second, err := rt.Spawn(ctx, closing("second"))
	require.NoError(t, err)

	require.NoError(t, rt.Close())

	// Most recently spawned closes first.
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, domain.StateClosed, first.State())
	assert.Equal(t, domain.StateClosed, second.State())
}

func TestRuntimeSpawnAfterCloseFails(t *testing.T) {
	rt := arbor.New()
	require.NoError(t, rt.Close())

	_, err := rt.Spawn(context.Background(), counterDef(t))
	require.Error(t, err)
}

func TestHandleCloseUnregistersFromRuntime(t *testing.T) {
	rt := arbor.New()
	defer rt.Close()

	ctx := context.Background()
	h, err := rt.Spawn(ctx, counterDef(t))
	require.NoError(t, err)

	require.NoError(t, h.Close(false))
	assert.Equal(t, domain.StateClosed, h.State())

	// A second close through the runtime must not double-fire the
	// instance's teardown.
	require.NoError(t, rt.Close())
}

func TestRuntimeComposesChildren(t *testing.T) {
	rt := arbor.New()
	defer rt.Close()

	ctx := context.Background()

	item := dsl.Define("item").
		Render(func(s domain.Scope) (any, error) {
			return s.Arg(0), nil
		}).
		MustBuild()

	list := dsl.Define("list").
		Render(func(s domain.Scope) (any, error) {
			keys := make([]string, s.NumArgs())
			for i := 0; i < s.NumArgs(); i++ {
				keys[i] = s.Arg(i).(string)
			}
			out := make([]any, 0, len(keys))
			for _, k := range keys {
				out = append(out, s.UseKeyed("items", k, item, k))
			}
			return out, nil
		}).
		MustBuild()

	h, err := rt.Spawn(ctx, list, "a", "b")
	require.NoError(t, err)

	out, err := h.Render()
	require.NoError(t, err)
	refs, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, refs, 2)

	values := make([]any, 0, len(refs))
	for _, ref := range refs {
		v, err := ref.(domain.ChildRef).Value()
		require.NoError(t, err)
		values = append(values, v)
	}
	assert.Equal(t, []any{"a", "b"}, values)
}

func TestRuntimeMetricsObserveLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.MustNew(reg)

	rt := arbor.New(arbor.WithMetrics(m))

	ctx := context.Background()
	h, err := rt.Spawn(ctx, counterDef(t))
	require.NoError(t, err)

	_, err = h.Send(ctx, "bump")
	require.NoError(t, err)

	require.NoError(t, rt.Close())

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, fam := range families {
		var total float64
		for _, metric := range fam.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
		byName[fam.GetName()] = total
	}

	assert.Greater(t, byName["arbor_cycle_total"], 0.0)
	assert.Greater(t, byName["arbor_trap_total"], 0.0)
	assert.Equal(t, 0.0, byName["arbor_live_instances"])
}
