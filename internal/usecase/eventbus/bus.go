// Package eventbus fans lifecycle events out to in-process subscribers.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"botgate/internal/domain"
)

// DefaultBuffer is the per-subscriber backlog before events are dropped.
const DefaultBuffer = 256

type envelope struct {
	ctx   context.Context
	event domain.Event
}

type subscriber struct {
	id      uint64
	filter  domain.EventType // empty matches every event
	handler domain.EventHandler
	inbox   chan envelope
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.inbox) })
}

// Bus is an in-process event bus. Every subscriber runs on its own
// goroutine and sees events in publish order. A subscriber whose backlog
// is full loses the event rather than stalling the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  atomic.Uint64
	dropped atomic.Uint64
	buffer  int
	logger  *slog.Logger
	closed  atomic.Bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscriber backlog.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// New creates an event bus.
func New(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[uint64]*subscriber),
		buffer: DefaultBuffer,
		logger: logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish queues the event for every matching subscriber without blocking.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}
	env := envelope{ctx: context.WithoutCancel(ctx), event: event}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.filter != "" && s.filter != event.Type {
			continue
		}
		select {
		case s.inbox <- env:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event subscriber backlog full, dropping event",
				"event", string(event.Type),
				"subscriber", s.id,
			)
		}
	}
}

// Subscribe registers a handler for one event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.add(eventType, handler)
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	return b.add("", handler)
}

func (b *Bus) add(filter domain.EventType, handler domain.EventHandler) func() {
	s := &subscriber{
		id:      b.nextID.Add(1),
		filter:  filter,
		handler: handler,
		inbox:   make(chan envelope, b.buffer),
		done:    make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		return func() {}
	}
	b.subs[s.id] = s
	b.mu.Unlock()
	go b.loop(s)

	return func() {
		b.mu.Lock()
		_, ok := b.subs[s.id]
		delete(b.subs, s.id)
		b.mu.Unlock()
		if ok {
			s.stop()
		}
	}
}

func (b *Bus) loop(s *subscriber) {
	defer close(s.done)
	for env := range s.inbox {
		b.deliver(s, env)
	}
}

func (b *Bus) deliver(s *subscriber, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(env.event.Type),
				"panic", r,
			)
		}
	}()
	s.handler(env.ctx, env.event)
}

// Dropped returns how many events were lost to full subscriber backlogs.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close stops accepting events and waits until every subscriber has
// handled its backlog. Close is idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[uint64]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	for _, s := range subs {
		<-s.done
	}
}
