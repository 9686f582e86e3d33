package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"fidx/internal/logging"
)

// Handler applies FileEvents.
type Handler interface {
	Handle(ctx context.Context, ev FileEvent) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev FileEvent) error

func (f HandlerFunc) Handle(ctx context.Context, ev FileEvent) error { return f(ctx, ev) }

type pendingEvent struct {
	ctx   context.Context
	ev    FileEvent
	timer *time.Timer
	gen   uint64
}

// DebouncedHandler wraps another Handler and delays each path's events by
// a quiet period. A newer event for the same path replaces the pending one
// and restarts the delay, so only the last event in a burst reaches the
// inner handler. Events without a primary path are forwarded immediately.
//
// Deliveries to the inner handler are serialized, so events for one path
// reach it in arrival order.
type DebouncedHandler struct {
	inner  Handler
	delay  time.Duration
	logger logging.Logger

	mu      sync.Mutex
	pending map[string]*pendingEvent
	gen     uint64
	closed  bool

	deliverMu sync.Mutex
	inflight  sync.WaitGroup
}

// NewDebouncedHandler wraps inner with a debounce of delay.
func NewDebouncedHandler(inner Handler, delay time.Duration, logger logging.Logger) *DebouncedHandler {
	return &DebouncedHandler{
		inner:   inner,
		delay:   delay,
		logger:  logger,
		pending: make(map[string]*pendingEvent),
	}
}

// Handle schedules ev. It returns immediately for path events; errors from
// the inner handler on delayed delivery are logged, not returned.
func (d *DebouncedHandler) Handle(ctx context.Context, ev FileEvent) error {
	path, ok := ev.PrimaryPath()
	if !ok {
		d.deliverMu.Lock()
		defer d.deliverMu.Unlock()
		return d.inner.Handle(ctx, ev)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrHandlerClosed
	}

	d.gen++
	gen := d.gen
	if p, exists := d.pending[path]; exists {
		p.timer.Stop()
		p.ctx, p.ev, p.gen = ctx, ev, gen
		p.timer = time.AfterFunc(d.delay, func() { d.fire(path, gen) })
		return nil
	}

	d.inflight.Add(1)
	d.pending[path] = &pendingEvent{
		ctx:   ctx,
		ev:    ev,
		gen:   gen,
		timer: time.AfterFunc(d.delay, func() { d.fire(path, gen) }),
	}
	return nil
}

// ErrHandlerClosed is returned when events are handed to a closed DebouncedHandler.
var ErrHandlerClosed = errors.New("handler closed")

func (d *DebouncedHandler) fire(path string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[path]
	// A stale timer lost the race with a newer event for the same path.
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	defer d.inflight.Done()
	d.deliver(p)
}

func (d *DebouncedHandler) deliver(p *pendingEvent) {
	if p.ctx.Err() != nil {
		d.logger.Debug("discarding debounced event", "event", p.ev, "reason", p.ctx.Err())
		return
	}

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	if err := d.inner.Handle(p.ctx, p.ev); err != nil {
		d.logger.Warn("applying event failed", "event", p.ev, "error", err)
	}
}

// Pending returns the number of paths waiting for their delay to elapse.
func (d *DebouncedHandler) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush delivers every pending event now, using ctx for the deliveries.
func (d *DebouncedHandler) Flush(ctx context.Context) {
	d.mu.Lock()
	var due []*pendingEvent
	for path, p := range d.pending {
		if p.timer.Stop() {
			delete(d.pending, path)
			p.ctx = ctx
			due = append(due, p)
		}
	}
	d.mu.Unlock()

	for _, p := range due {
		d.deliver(p)
		d.inflight.Done()
	}
}

// Close discards pending events, stops accepting new ones and waits for
// in-flight deliveries to finish.
func (d *DebouncedHandler) Close() {
	d.mu.Lock()
	d.closed = true
	for path, p := range d.pending {
		if p.timer.Stop() {
			delete(d.pending, path)
			d.inflight.Done()
		}
	}
	d.mu.Unlock()

	d.inflight.Wait()
}

// Consume applies events from q to h until ctx is cancelled or q is closed
// and drained. A failing event is logged and the loop moves on.
func Consume(ctx context.Context, q *Queue, h Handler, logger logging.Logger) error {
	for {
		events, err := q.RecvDeduplicated(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		for _, ev := range events {
			if ctx.Err() != nil {
				return nil
			}
			if err := h.Handle(ctx, ev); err != nil {
				logger.Warn("applying event failed", "event", ev, "error", err)
			}
		}
	}
}
