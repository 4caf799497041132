package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arborlabs/arbor/internal/graph"
	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/internal/reconcile"
	"github.com/arborlabs/arbor/internal/schedule"
	"github.com/arborlabs/arbor/pkg/domain"
)

var idSeq atomic.Uint64

var _ reconcile.Child = (*Instance)(nil)

// Instance is one running actor. It implements reconcile.Child so a parent's
// slot table can own it directly.
type Instance struct {
	id  string
	def *domain.ActorDefinition

	mu    sync.Mutex
	state domain.LifecycleState

	gate     *schedule.Gate
	notifier *schedule.Notifier

	g       *graph.Graph
	argH    []graph.Handle
	bindH   map[string]graph.Handle
	renderH graph.Handle
	args    []any

	traps map[string][]*trapEntry

	children *reconcile.Set

	subMu   sync.Mutex
	subs    map[int]domain.Observer
	nextSub int

	// Fallback delivery queue, used only without a shared notifier. A single
	// drain goroutine keeps successive cycles' notifications in order.
	notifyMu       sync.Mutex
	notifyQueue    []func()
	notifyDraining bool

	ctx    context.Context
	cancel context.CancelFunc

	// pass is non-nil while an update cycle is evaluating; it collects the
	// slot requests emitted by compose sites during that pass.
	pass *passState

	// ready resolves when a deferred-executing instance finishes its first
	// cycle. Nil for ordinary instances.
	ready *domain.Future

	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	graphTrace graph.Trace
	childTrace reconcile.Trace
}

type passState struct {
	requests []reconcile.Request
	created  int
	closed   int
}

// churnHook counts child churn per pass and forwards to the configured
// child trace.
type churnHook struct{ in *Instance }

func (h churnHook) OnChildCreate(def string) {
	if h.in.pass != nil {
		h.in.pass.created++
	}
	if h.in.childTrace != nil {
		h.in.childTrace.OnChildCreate(def)
	}
}

func (h churnHook) OnChildClose(def string) {
	if h.in.pass != nil {
		h.in.pass.closed++
	}
	if h.in.childTrace != nil {
		h.in.childTrace.OnChildClose(def)
	}
}

// Option configures an Instance at creation time.
type Option func(*Instance)

// WithID overrides the generated instance ID.
func WithID(id string) Option {
	return func(in *Instance) { in.id = id }
}

// WithLogger sets the instance logger. Defaults to a nop logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Instance) { in.logger = logger }
}

// WithHooks installs lifecycle hooks, propagated to composed children.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(in *Instance) { in.hooks = hooks }
}

// WithNotifier shares an external notifier for subscription delivery. When
// absent, a per-instance serial queue delivers notifications in cycle order,
// still outside the mutating call path.
func WithNotifier(n *schedule.Notifier) Option {
	return func(in *Instance) { in.notifier = n }
}

// WithGraphTrace instruments binding recomputes and skips.
func WithGraphTrace(t graph.Trace) Option {
	return func(in *Instance) { in.graphTrace = t }
}

// WithChildTrace instruments child creation and closure.
func WithChildTrace(t reconcile.Trace) Option {
	return func(in *Instance) { in.childTrace = t }
}

// New creates an instance from a definition and runs its first update cycle.
// Ordinary definitions cycle synchronously: when New returns, the instance is
// Active and its render output is available. Deferred-executing definitions
// cycle asynchronously; Render then yields a future.
//
// A first-cycle error on an ordinary definition closes the instance and is
// returned to the caller.
func New(ctx context.Context, def *domain.ActorDefinition, args []any, opts ...Option) (*Instance, error) {
	if def == nil {
		return nil, errors.New("nil definition")
	}
	if def.Render == nil {
		return nil, fmt.Errorf("definition %q has no render expression", def.Name)
	}

	in := &Instance{
		def:    def,
		state:  domain.StateUninitialized,
		gate:   schedule.NewGate(),
		g:      graph.New(),
		bindH:  make(map[string]graph.Handle),
		subs:   make(map[int]domain.Observer),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.id == "" {
		in.id = fmt.Sprintf("%s-%d", def.Name, idSeq.Add(1))
	}
	in.ctx, in.cancel = context.WithCancel(context.WithoutCancel(ctx))
	in.g.SetTrace(in.graphTrace)

	if err := in.declare(args); err != nil {
		in.cancel()
		return nil, err
	}
	in.children = reconcile.NewSet(in.spawnChild, churnHook{in})

	in.mu.Lock()
	in.state = domain.StateActive
	in.mu.Unlock()
	if in.hooks.OnInstanceCreate != nil {
		in.hooks.OnInstanceCreate(in.ctx, &domain.InstanceEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventInstanceCreate},
			Definition: def.Name,
			InstanceID: in.id,
		})
	}

	if def.Deferred {
		in.ready = domain.NewFuture()
		go func() {
			if err := in.gate.Enter(in.ctx); err != nil {
				in.ready.Reject(err)
				return
			}
			defer in.gate.Leave()
			if err := in.runCycle(); err != nil {
				in.ready.Reject(err)
				return
			}
			in.ready.Resolve(nil)
		}()
		return in, nil
	}

	if err := in.gate.Enter(ctx); err != nil {
		in.cancel()
		return nil, err
	}
	err := in.runCycle()
	in.gate.Leave()
	if err != nil {
		_ = in.Close(true)
		return nil, err
	}
	return in, nil
}

// declare builds the binding arena from the definition: one implicit node
// per argument, one node per declared binding, one render node.
func (in *Instance) declare(args []any) error {
	in.args = append([]any(nil), args...)
	for i, v := range args {
		h := in.g.DeclareArg(i)
		in.g.SetSource(h, v)
		in.argH = append(in.argH, h)
	}

	for _, decl := range in.def.Bindings {
		if _, dup := in.bindH[decl.Name]; dup {
			return fmt.Errorf("definition %q declares binding %q twice", in.def.Name, decl.Name)
		}
		if !decl.Computed() {
			in.bindH[decl.Name] = in.g.DeclareState(decl.Name, decl.Initial)
			continue
		}
		h := in.g.DeclareComputed(decl.Name, decl.Deferred)
		in.bindH[decl.Name] = h
		compute := decl.Compute
		owner := decl.Name
		in.g.Bind(h, func() (any, error) {
			return compute(&scopeImpl{in: in, owner: owner})
		})
	}
	// Input lists resolve after every binding exists, so forward references
	// among declarations work.
	for _, decl := range in.def.Bindings {
		if decl.Inputs != nil || len(decl.Ignore) > 0 {
			in.g.ResolveInputs(in.bindH[decl.Name], decl.Inputs, decl.Ignore)
		}
	}

	in.renderH = in.g.DeclareRender()
	render := in.def.Render
	in.g.Bind(in.renderH, func() (any, error) {
		return render(&scopeImpl{in: in, owner: renderOwner})
	})

	in.traps = make(map[string][]*trapEntry, len(in.def.Traps))
	for i := range in.def.Traps {
		decl := &in.def.Traps[i]
		in.traps[decl.Name] = append(in.traps[decl.Name], &trapEntry{decl: decl})
	}
	return nil
}

// spawnChild is the reconciler factory: children share the parent's
// notifier, hooks, and traces, and carry their own gate and graph.
func (in *Instance) spawnChild(req reconcile.Request) (reconcile.Child, error) {
	return New(in.ctx, req.Def, req.Args,
		WithLogger(in.logger),
		WithHooks(in.hooks),
		WithNotifier(in.notifier),
		WithGraphTrace(in.graphTrace),
		WithChildTrace(in.childTrace),
	)
}

// ID returns the instance identifier.
func (in *Instance) ID() string { return in.id }

// Definition returns the definition name this instance was created from.
func (in *Instance) Definition() string { return in.def.Name }

// State returns the current lifecycle state.
func (in *Instance) State() domain.LifecycleState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

func (in *Instance) terminal() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state.Terminal()
}

// Update replaces the argument tuple and runs an update cycle. Only the
// arguments that actually changed, per the identity rule, dirty anything.
// Cycle errors are routed to subscribers; Update itself fails only when the
// instance is no longer Active.
func (in *Instance) Update(args ...any) error {
	if err := in.enter(in.ctx, "update"); err != nil {
		return err
	}
	defer in.gate.Leave()

	in.setArgs(args)
	if err := in.runCycle(); err != nil {
		in.deliverError(err)
	}
	return nil
}

// setArgs stores the new tuple into the arg nodes, growing the arena when
// the arity increases. Vacated trailing positions read as nil.
func (in *Instance) setArgs(args []any) {
	for i, v := range args {
		if i == len(in.argH) {
			in.argH = append(in.argH, in.g.DeclareArg(i))
		}
		in.g.SetSource(in.argH[i], v)
	}
	for i := len(args); i < len(in.argH); i++ {
		in.g.SetSource(in.argH[i], nil)
	}
	in.args = append(in.args[:0], args...)
}

// Subscribe registers an observer pair and returns its removal function.
// Observers see only mutating cycles that changed at least one binding,
// always asynchronously.
func (in *Instance) Subscribe(obs domain.Observer) func() {
	in.subMu.Lock()
	id := in.nextSub
	in.nextSub++
	in.subs[id] = obs
	in.subMu.Unlock()
	return func() {
		in.subMu.Lock()
		delete(in.subs, id)
		in.subMu.Unlock()
	}
}

func (in *Instance) observers() []domain.Observer {
	in.subMu.Lock()
	defer in.subMu.Unlock()
	out := make([]domain.Observer, 0, len(in.subs))
	for i := 0; i < in.nextSub; i++ {
		if obs, ok := in.subs[i]; ok {
			out = append(out, obs)
		}
	}
	return out
}

// Close tears the instance down: children first, in reverse creation order,
// then the finally block unless ignoreFinally is set, then the binding
// arena. Closing an already-closed instance is a no-op. Child and finally
// errors are joined and returned to the caller.
func (in *Instance) Close(ignoreFinally bool) error {
	if err := in.gate.Enter(context.Background()); err != nil {
		return err
	}
	defer in.gate.Leave()

	in.mu.Lock()
	if in.state.Terminal() {
		in.mu.Unlock()
		return nil
	}
	in.state = domain.StateClosing
	in.mu.Unlock()

	err := in.children.CloseAll(ignoreFinally)
	if !ignoreFinally && in.def.Finally != nil {
		if ferr := in.def.Finally(in.ctx, &scopeImpl{in: in, owner: "finally", mutable: true}); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}

	in.cancel()
	in.g.Release()

	in.mu.Lock()
	in.state = domain.StateClosed
	in.mu.Unlock()

	if in.hooks.OnInstanceClose != nil {
		in.hooks.OnInstanceClose(context.Background(), &domain.InstanceEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventInstanceClose},
			Definition: in.def.Name,
			InstanceID: in.id,
		})
	}
	in.logger.Debug("instance closed", "instance", in.id, "definition", in.def.Name)
	return err
}
