// Package notify carries social events from the actions that produce them to the
// notification handler, off the request goroutine.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"odinbook/domain"
)

var (
	// ErrClosed is returned by Publish once the dispatcher shuts down.
	ErrClosed = errors.New("notify: dispatcher closed")
	// ErrQueueFull is returned by Publish when the workers cannot keep up.
	ErrQueueFull = errors.New("notify: queue full")
)

// Dispatcher is the in-process fan-out. Publish queues an event and returns at
// once; a fixed pool of workers hands queued events to the handler.
type Dispatcher struct {
	handler domain.EventHandler
	workers int
	timeout time.Duration
	queue   chan domain.SocialEvent

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithBuffer sets how many events may wait in the queue.
func WithBuffer(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.queue = make(chan domain.SocialEvent, n)
		}
	}
}

// WithTimeout bounds the handling of a single event.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher starts the workers. Close must be called to stop them.
func NewDispatcher(handler domain.EventHandler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handler: handler,
		workers: 4,
		timeout: 10 * time.Second,
		queue:   make(chan domain.SocialEvent, 256),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.work()
	}
	return d
}

var _ domain.EventPublisher = &Dispatcher{}

// Publish queues the event without blocking.
func (d *Dispatcher) Publish(ctx context.Context, event domain.SocialEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events, and returns once the queued ones are handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for event := range d.queue {
		handle(d.handler, event, d.timeout)
	}
}

// handle runs the handler for one event. Failures end here: they are logged and
// never reach the action that produced the event.
func handle(handler domain.EventHandler, event domain.SocialEvent, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := handler.HandleEvent(ctx, event); err != nil {
		slog.Error("notification failed",
			"kind", event.Kind,
			"actor", event.ActorID,
			"post", event.PostID,
			"comment", event.CommentID,
			"error", err)
	}
}
