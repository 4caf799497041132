package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/arbor/pkg/domain"
)

func TestHooksFeedCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnInstanceCreate(ctx, &domain.InstanceEvent{Definition: "counter", InstanceID: "c-1"})
	hooks.OnCycle(ctx, &domain.CycleEvent{
		Definition: "counter", InstanceID: "c-1",
		Recomputed: 3, Skipped: 2, Changed: true,
		ChildrenCreated: 1,
	})
	hooks.OnTrap(ctx, &domain.TrapEvent{Definition: "counter", InstanceID: "c-1", Trap: "bump"})
	hooks.OnInstanceClose(ctx, &domain.InstanceEvent{Definition: "counter", InstanceID: "c-1"})

	assert.Equal(t, float64(3), testutil.ToFloat64(m.recomputeTotal.WithLabelValues("counter")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.skipTotal.WithLabelValues("counter")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cycleTotal.WithLabelValues("counter", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.childTotal.WithLabelValues("counter", "create")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.trapTotal.WithLabelValues("counter", "bump", "false")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.liveInstances))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestObserveQueueDepth(t *testing.T) {
	m := MustNew(prometheus.NewRegistry())
	m.ObserveQueueDepth(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.queueDepth))
}
