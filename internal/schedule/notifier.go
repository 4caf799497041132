package schedule

import (
	"log/slog"
	"sync"
)

// Notifier delivers subscription callbacks on a dedicated goroutine.
// Callbacks enqueued during a mutating call run only after that call has
// returned, which keeps notification timing independent of call-stack depth
// and prevents reentrant update storms.
type Notifier struct {
	queue chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool

	logger *slog.Logger

	// DepthHook, when set, observes the queue depth after every enqueue.
	// Used by the metrics collector.
	DepthHook func(depth int)
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierLogger sets the logger used for dropped-callback warnings.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier starts the delivery goroutine. Close must be called to drain
// and stop it.
func NewNotifier(buffer int, opts ...NotifierOption) *Notifier {
	if buffer <= 0 {
		buffer = 256
	}
	n := &Notifier{queue: make(chan func(), buffer)}
	for _, opt := range opts {
		opt(n)
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for fn := range n.queue {
			fn()
		}
	}()
	return n
}

// Enqueue schedules a callback for asynchronous delivery. Callbacks enqueued
// after Close are dropped with a warning.
func (n *Notifier) Enqueue(fn func()) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		if n.logger != nil {
			n.logger.Warn("notification dropped: notifier closed")
		}
		return
	}
	n.queue <- fn
	if n.DepthHook != nil {
		n.DepthHook(len(n.queue))
	}
	n.mu.Unlock()
}

// Close drains pending callbacks and stops the delivery goroutine.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
}
