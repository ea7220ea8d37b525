// Package eventbus carries console lifecycle and commit notifications to
// observers inside the process.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"maestro-console/internal/domain"
)

// DefaultQueueSize is the per-subscriber backlog before events are dropped.
const DefaultQueueSize = 1024

type delivery struct {
	ctx   context.Context
	event domain.Event
}

// subscription owns one queue and one worker goroutine, so each handler sees
// events in publish order and a slow handler never blocks Publish.
type subscription struct {
	id      uint64
	handler domain.EventHandler
	queue   chan delivery
}

// Bus is an in-process, goroutine-safe event bus with ordered delivery per
// subscriber.
type Bus struct {
	mu        sync.RWMutex
	typed     map[domain.EventType][]*subscription
	allSubs   []*subscription
	nextID    atomic.Uint64
	queueSize int
	dropped   atomic.Uint64
	logger    *slog.Logger
	wg        sync.WaitGroup
	closed    bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize sets the per-subscriber backlog.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// New creates an event bus.
func New(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		typed:     make(map[domain.EventType][]*subscription),
		queueSize: DefaultQueueSize,
		logger:    logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish enqueues an event for matching typed subscribers and all-event
// subscribers. It never blocks: a subscriber whose queue is full loses the
// event and the drop is counted.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.typed[event.Type] {
		b.enqueue(ctx, event, sub)
	}
	for _, sub := range b.allSubs {
		b.enqueue(ctx, event, sub)
	}
}

func (b *Bus) enqueue(ctx context.Context, event domain.Event, sub *subscription) {
	select {
	case sub.queue <- delivery{ctx: ctx, event: event}:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event dropped for slow subscriber",
			"event", string(event.Type),
			"subscriber", sub.id,
		)
	}
}

// Dropped returns how many deliveries were lost to full queues.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

func (b *Bus) start(handler domain.EventHandler) *subscription {
	sub := &subscription{
		id:      b.nextID.Add(1),
		handler: handler,
		queue:   make(chan delivery, b.queueSize),
	}
	b.wg.Add(1)
	go b.run(sub)
	return sub
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	for d := range sub.queue {
		b.invoke(sub, d)
	}
}

func (b *Bus) invoke(sub *subscription, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(d.event.Type),
				"panic", r,
			)
		}
	}()
	sub.handler(d.ctx, d.event)
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function; events already queued are still delivered.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	sub := b.start(handler)
	b.typed[eventType] = append(b.typed[eventType], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.typed[eventType]
		for i, s := range subs {
			if s.id == sub.id {
				b.typed[eventType] = append(subs[:i:i], subs[i+1:]...)
				close(s.queue)
				return
			}
		}
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	sub := b.start(handler)
	b.allSubs = append(b.allSubs, sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.allSubs {
			if s.id == sub.id {
				b.allSubs = append(b.allSubs[:i:i], b.allSubs[i+1:]...)
				close(s.queue)
				return
			}
		}
	}
}

// Close prevents new publishes and waits for queued events to be handled.
// Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.typed {
		for _, s := range subs {
			close(s.queue)
		}
	}
	for _, s := range b.allSubs {
		close(s.queue)
	}
	b.typed = nil
	b.allSubs = nil
	b.mu.Unlock()

	b.wg.Wait()
}

var _ domain.EventBus = (*Bus)(nil)
