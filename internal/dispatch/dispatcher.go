// Package dispatch serializes all command processing. A single consumer
// drains a bounded FIFO queue so that state transitions triggered by
// commands happen in one global order, regardless of which session or
// request goroutine submitted them.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/event-relay/backend/internal/event"
	"github.com/event-relay/backend/internal/metrics"
	"github.com/event-relay/backend/internal/session"
)

// DefaultQueueCapacity is the depth of the command queue when no
// capacity is configured. A full queue backpressures producers rather
// than dropping commands.
const DefaultQueueCapacity = 32

type entry struct {
	sessionID string
	cmd       event.ClientCommand
}

// Handler processes one command for one session. It may deliver zero or
// more events through the registry.
type Handler func(sessionID string, cmd event.ClientCommand)

// Dispatcher owns the command queue and its single consumer goroutine.
type Dispatcher struct {
	registry *session.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	handler  Handler

	queue chan entry

	stopOnce sync.Once
	done     chan struct{}
	drained  chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHandler replaces the default command handler. Used by tests to
// observe execution order; the replacement receives every dequeued
// command in arrival order.
func WithHandler(h Handler) Option {
	return func(d *Dispatcher) { d.handler = h }
}

// New creates a dispatcher with the given queue capacity (or
// DefaultQueueCapacity when capacity is not positive) and starts its
// consumer goroutine.
func New(registry *session.Registry, capacity int, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	d := &Dispatcher{
		registry: registry,
		logger:   logger,
		metrics:  m,
		queue:    make(chan entry, capacity),
		done:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	d.handler = d.handle
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Enqueue places a command on the queue, blocking while the queue is
// full. It returns early if ctx is canceled or the dispatcher has
// stopped; a send lost to shutdown is best-effort and not an error.
func (d *Dispatcher) Enqueue(ctx context.Context, sessionID string, cmd event.ClientCommand) {
	// Check shutdown first: with the queue and done both ready the
	// combined select could pick the send and count a command that will
	// never execute.
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.queue <- entry{sessionID: sessionID, cmd: cmd}:
		d.metrics.CommandsEnqueued.Inc()
	case <-ctx.Done():
	case <-d.done:
	}
}

// Stop terminates the consumer after it finishes the command in flight.
// Commands still queued are discarded.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	<-d.drained
}

func (d *Dispatcher) run() {
	defer close(d.drained)
	for {
		select {
		case <-d.done:
			return
		case e := <-d.queue:
			d.handler(e.sessionID, e.cmd)
		}
	}
}

// handle executes one command. Commands do not consult the session map:
// an authenticated-but-unregistered session's connect is processed and
// its welcome simply dropped by Deliver (at-most-once semantics).
func (d *Dispatcher) handle(sessionID string, cmd event.ClientCommand) {
	switch c := cmd.(type) {
	case event.Connect:
		d.registry.Deliver(sessionID, event.Welcome{Text: event.WelcomeText})
	case event.Unknown:
		d.metrics.CommandsUnknown.Inc()
		d.logger.Warn("ignoring unknown command", "session", sessionID, "type", c.Type)
	default:
		d.metrics.CommandsUnknown.Inc()
		d.logger.Warn("no handler for command", "session", sessionID)
	}
}
