package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueClosed is returned by sends after Close, and by receives once
	// a closed queue has been drained.
	ErrQueueClosed = errors.New("event queue closed")
)

// QueueConfig sizes an event Queue.
type QueueConfig struct {
	MaxCapacity   int           // Bounded channel size
	DebounceDelay time.Duration // Quiet period used by DebouncedHandler
	BatchSize     int           // Upper bound on events returned by one drain
}

// DefaultQueueConfig returns capacity 10000, a 500ms debounce and batches of 100.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxCapacity:   10000,
		DebounceDelay: 500 * time.Millisecond,
		BatchSize:     100,
	}
}

func (c QueueConfig) withDefaults() QueueConfig {
	d := DefaultQueueConfig()
	if c.MaxCapacity <= 0 {
		c.MaxCapacity = d.MaxCapacity
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = d.DebounceDelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	return c
}

// QueueOption configures optional Queue behaviour.
type QueueOption func(*Queue)

// WithDropHook registers fn to be called for every event TrySend drops.
// fn runs on the producer's goroutine and must not block.
func WithDropHook(fn func(FileEvent)) QueueOption {
	return func(q *Queue) { q.onDrop = fn }
}

// Queue is a bounded, concurrency-safe buffer of FileEvents between
// producers (the watcher, scan markers) and a single consumer.
//
// Producers on notification paths use TrySend, which never blocks and
// drops the event when the buffer is full. A dropped Modified heals on
// the next change to the file; a dropped Deleted leaves the record
// active until the next scan of its directory.
type Queue struct {
	cfg QueueConfig
	ch  chan FileEvent

	// mu guards closed. Senders hold the read lock while sending so Close
	// cannot close ch underneath them.
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once

	dropped atomic.Uint64
	onDrop  func(FileEvent)
}

// NewQueue creates a Queue. Zero fields in cfg take their defaults.
func NewQueue(cfg QueueConfig, opts ...QueueOption) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		cfg:  cfg,
		ch:   make(chan FileEvent, cfg.MaxCapacity),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Config returns the effective configuration.
func (q *Queue) Config() QueueConfig { return q.cfg }

// Send enqueues ev, waiting for space if the queue is full.
func (q *Queue) Send(ctx context.Context, ev FileEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- ev:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues ev without blocking. It reports false when the event
// was dropped because the queue is full or closed.
func (q *Queue) TrySend(ev FileEvent) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	select {
	case q.ch <- ev:
		return true
	default:
		q.dropped.Add(1)
		if q.onDrop != nil {
			q.onDrop(ev)
		}
		return false
	}
}

// Recv blocks until one event is available.
func (q *Queue) Recv(ctx context.Context) (FileEvent, error) {
	select {
	case ev, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecvBatch blocks until at least one event is available, then drains
// whatever else is already queued, up to BatchSize events in total.
// Events are returned in arrival order without deduplication.
func (q *Queue) RecvBatch(ctx context.Context) ([]FileEvent, error) {
	first, err := q.Recv(ctx)
	if err != nil {
		return nil, err
	}

	batch := make([]FileEvent, 1, q.cfg.BatchSize)
	batch[0] = first
	for len(batch) < q.cfg.BatchSize {
		select {
		case ev, ok := <-q.ch:
			if !ok {
				return batch, nil
			}
			batch = append(batch, ev)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// RecvDeduplicated performs a RecvBatch and collapses events that share a
// primary path, keeping the last one drained for each path.
func (q *Queue) RecvDeduplicated(ctx context.Context) ([]FileEvent, error) {
	batch, err := q.RecvBatch(ctx)
	if err != nil {
		return nil, err
	}
	return Deduplicate(batch), nil
}

// Deduplicate keeps the last event for each primary path. Survivors keep
// the relative order of their last occurrence. Events without a primary
// path are always kept in place.
func Deduplicate(events []FileEvent) []FileEvent {
	if len(events) < 2 {
		return events
	}

	seen := make(map[string]struct{}, len(events))
	out := make([]FileEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if path, ok := ev.PrimaryPath(); ok {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
		}
		out = append(out, ev)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns the number of events TrySend has dropped.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Close stops accepting events. Queued events can still be received;
// after they are drained receivers get ErrQueueClosed. Close is idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		// Wake blocked senders before taking the write lock.
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
}
