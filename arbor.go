package arbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arborlabs/arbor/internal/instance"
	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/internal/schedule"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/dsl"
	"github.com/arborlabs/arbor/pkg/observability"
)

// Runtime is the high-level entry point for the arbor library. It owns the
// shared notification queue and the ambient wiring (logging, hooks, metrics)
// every spawned instance inherits.
type Runtime struct {
	notifier *schedule.Notifier
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	metrics  *observability.Metrics
	buffer   int

	mu      sync.Mutex
	closed  bool
	handles []*Handle
}

// Option defines a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithLogger sets a structured logger for the runtime and its instances.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logger }
}

// WithLifecycleHooks registers observability hooks, invoked synchronously on
// the mutating path of every instance.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runtime) { r.hooks = hooks }
}

// WithMetrics attaches Prometheus collectors: lifecycle hooks feed the
// counters and the notification queue reports its depth.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithNotificationBuffer sizes the subscription delivery queue.
func WithNotificationBuffer(n int) Option {
	return func(r *Runtime) { r.buffer = n }
}

// New initializes a runtime. Close it to drain pending notifications and
// tear down any instances still alive.
func New(opts ...Option) *Runtime {
	rt := &Runtime{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.metrics != nil {
		rt.hooks = composeHooks(rt.hooks, rt.metrics.Hooks())
	}
	rt.notifier = schedule.NewNotifier(rt.buffer, schedule.WithNotifierLogger(rt.logger))
	if rt.metrics != nil {
		rt.notifier.DepthHook = rt.metrics.ObserveQueueDepth
	}
	return rt
}

// Spawn validates the definition and creates a new instance from it. For
// ordinary definitions the first update cycle has completed when Spawn
// returns; deferred-executing definitions cycle asynchronously and render a
// *domain.Future.
func (r *Runtime) Spawn(ctx context.Context, def *domain.ActorDefinition, args ...any) (*Handle, error) {
	return r.spawn(ctx, "", def, args)
}

// SpawnID is Spawn with a caller-chosen instance ID, used by supervisors
// that key persistence and locking by ID.
func (r *Runtime) SpawnID(ctx context.Context, id string, def *domain.ActorDefinition, args ...any) (*Handle, error) {
	return r.spawn(ctx, id, def, args)
}

func (r *Runtime) spawn(ctx context.Context, id string, def *domain.ActorDefinition, args []any) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("runtime is closed")
	}
	r.mu.Unlock()

	if def == nil {
		return nil, errors.New("nil definition")
	}
	if err := dsl.Validate(def); err != nil {
		return nil, fmt.Errorf("definition %q: %w", def.Name, err)
	}

	iopts := []instance.Option{
		instance.WithLogger(r.logger.With("definition", def.Name)),
		instance.WithHooks(r.hooks),
		instance.WithNotifier(r.notifier),
	}
	if id != "" {
		iopts = append(iopts, instance.WithID(id))
	}
	in, err := instance.New(ctx, def, args, iopts...)
	if err != nil {
		return nil, err
	}

	h := &Handle{rt: r, in: in}
	r.mu.Lock()
	r.handles = append(r.handles, h)
	r.mu.Unlock()
	return h, nil
}

// Close tears down every instance still alive, most recently spawned first,
// then drains and stops the notification queue.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	var firstErr error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].in.Close(false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.notifier.Close()
	return firstErr
}

func (r *Runtime) forget(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, other := range r.handles {
		if other == h {
			r.handles = append(r.handles[:i], r.handles[i+1:]...)
			return
		}
	}
}

// composeHooks chains two hook sets; both sides observe every event.
func composeHooks(a, b domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnInstanceCreate: func(ctx context.Context, e *domain.InstanceEvent) {
			if a.OnInstanceCreate != nil {
				a.OnInstanceCreate(ctx, e)
			}
			if b.OnInstanceCreate != nil {
				b.OnInstanceCreate(ctx, e)
			}
		},
		OnInstanceClose: func(ctx context.Context, e *domain.InstanceEvent) {
			if a.OnInstanceClose != nil {
				a.OnInstanceClose(ctx, e)
			}
			if b.OnInstanceClose != nil {
				b.OnInstanceClose(ctx, e)
			}
		},
		OnCycle: func(ctx context.Context, e *domain.CycleEvent) {
			if a.OnCycle != nil {
				a.OnCycle(ctx, e)
			}
			if b.OnCycle != nil {
				b.OnCycle(ctx, e)
			}
		},
		OnTrap: func(ctx context.Context, e *domain.TrapEvent) {
			if a.OnTrap != nil {
				a.OnTrap(ctx, e)
			}
			if b.OnTrap != nil {
				b.OnTrap(ctx, e)
			}
		},
	}
}

// Handle is the public operation surface of one live instance.
type Handle struct {
	rt *Runtime
	in *instance.Instance
}

// ID returns the instance identifier.
func (h *Handle) ID() string { return h.in.ID() }

// Definition returns the name of the definition the instance was spawned
// from.
func (h *Handle) Definition() string { return h.in.Definition() }

// State returns the instance's lifecycle state.
func (h *Handle) State() domain.LifecycleState { return h.in.State() }

// Update replaces the argument tuple and runs an update cycle. Errors raised
// by bindings during the cycle are delivered to subscribers, not returned.
func (h *Handle) Update(args ...any) error { return h.in.Update(args...) }

// Send invokes the observers of a trap in registration order. See the
// package documentation for the error and deferred-result semantics.
func (h *Handle) Send(ctx context.Context, trap string, args ...any) (any, error) {
	return h.in.Send(ctx, trap, args...)
}

// HasTrap reports whether the definition declares any observer for trap.
func (h *Handle) HasTrap(trap string) bool { return h.in.HasTrap(trap) }

// Render returns the instance's current return-expression value. It never
// runs an update cycle; a deferred-executing instance yields a
// *domain.Future.
func (h *Handle) Render() (any, error) { return h.in.Render() }

// Subscribe registers an observer pair and returns its removal function.
func (h *Handle) Subscribe(obs domain.Observer) func() { return h.in.Subscribe(obs) }

// Inspect returns the instance's dependency graph as of the most recent
// cycle.
func (h *Handle) Inspect() (domain.GraphInfo, error) { return h.in.Inspect() }

// Snapshot captures the instance's current render output for persistence.
func (h *Handle) Snapshot() (domain.Snapshot, error) { return h.in.Snapshot() }

// Close tears the instance down: children first, then the finally block
// unless ignoreFinally is set. Idempotent.
func (h *Handle) Close(ignoreFinally bool) error {
	h.rt.forget(h)
	return h.in.Close(ignoreFinally)
}
