// Package observability exposes the runtime's operating counters as
// Prometheus metrics. Metrics attach to a runtime through lifecycle hooks,
// so the core packages stay free of any metrics dependency.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Metrics holds the collectors for one runtime.
type Metrics struct {
	recomputeTotal *prometheus.CounterVec
	skipTotal      *prometheus.CounterVec
	cycleTotal     *prometheus.CounterVec
	trapTotal      *prometheus.CounterVec
	childTotal     *prometheus.CounterVec
	liveInstances  prometheus.Gauge
	queueDepth     prometheus.Gauge
}

// New creates the collectors and registers them on the given registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		recomputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_binding_recompute_total",
			Help: "Number of binding recomputations, by definition.",
		}, []string{"definition"}),
		skipTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_binding_skip_total",
			Help: "Number of bindings skipped by the equality short-circuit.",
		}, []string{"definition"}),
		cycleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_cycle_total",
			Help: "Number of update cycles, by definition and whether a binding changed.",
		}, []string{"definition", "changed"}),
		trapTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_trap_total",
			Help: "Number of trap invocations, by definition, trap, and outcome.",
		}, []string{"definition", "trap", "errorful"}),
		childTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_reconciler_child_total",
			Help: "Number of child instances created and closed by the reconciler.",
		}, []string{"definition", "op"}),
		liveInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbor_live_instances",
			Help: "Number of instances currently alive.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbor_notification_queue_depth",
			Help: "Depth of the subscription notification queue.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.recomputeTotal, m.skipTotal, m.cycleTotal, m.trapTotal,
		m.childTotal, m.liveInstances, m.queueDepth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New with a panic on registration conflicts.
func MustNew(reg prometheus.Registerer) *Metrics {
	m, err := New(reg)
	if err != nil {
		panic(err)
	}
	return m
}

// Hooks returns lifecycle hooks that feed the collectors. Pass them to the
// runtime, composed with any other hooks the host installs.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnInstanceCreate: func(context.Context, *domain.InstanceEvent) {
			m.liveInstances.Inc()
		},
		OnInstanceClose: func(context.Context, *domain.InstanceEvent) {
			m.liveInstances.Dec()
		},
		OnCycle: func(_ context.Context, e *domain.CycleEvent) {
			m.recomputeTotal.WithLabelValues(e.Definition).Add(float64(e.Recomputed))
			m.skipTotal.WithLabelValues(e.Definition).Add(float64(e.Skipped))
			m.cycleTotal.WithLabelValues(e.Definition, boolLabel(e.Changed)).Inc()
			m.childTotal.WithLabelValues(e.Definition, "create").Add(float64(e.ChildrenCreated))
			m.childTotal.WithLabelValues(e.Definition, "close").Add(float64(e.ChildrenClosed))
		},
		OnTrap: func(_ context.Context, e *domain.TrapEvent) {
			m.trapTotal.WithLabelValues(e.Definition, e.Trap, boolLabel(e.IsError)).Inc()
		},
	}
}

// ObserveQueueDepth records the notification queue depth; wire it as the
// notifier's depth hook.
func (m *Metrics) ObserveQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
