package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"botgate/internal/domain"
)

func newTestBus(opts ...Option) *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventSessionReady, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventSessionReady {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionReady))
	bus.Publish(context.Background(), newEvent(domain.EventSessionFailed))
	bus.Close()
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionReady))
	bus.Publish(context.Background(), newEvent(domain.EventFrameDropped))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestDeliveryOrderPerSubscriber(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	var seen []string
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		mu.Lock()
		seen = append(seen, e.SessionID)
		mu.Unlock()
	})

	want := []string{"a", "b", "c", "d", "e"}
	for _, id := range want {
		bus.Publish(context.Background(), domain.Event{Type: domain.EventSessionConnecting, SessionID: id})
	}
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("got %d events, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("order = %v, want %v", seen, want)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventSessionReady, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	unsub()
	unsub()

	bus.Publish(context.Background(), newEvent(domain.EventSessionReady))
	bus.Close()

	if got.Load() != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", got.Load())
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventFrameDropped, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventFrameDropped))
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestFullBacklogDrops(t *testing.T) {
	bus := newTestBus(WithBuffer(1))

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionReady))
	<-started
	bus.Publish(context.Background(), newEvent(domain.EventSessionReady)) // queued
	bus.Publish(context.Background(), newEvent(domain.EventSessionReady)) // dropped
	close(release)
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2 delivered, got %d", got.Load())
	}
	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", bus.Dropped())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventSessionFailed, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	bus.Subscribe(domain.EventSessionFailed, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionFailed))
	bus.Publish(context.Background(), newEvent(domain.EventSessionFailed))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2 (second handler), got %d", got.Load())
	}
}

func TestHandlerContextSurvivesCancel(t *testing.T) {
	bus := newTestBus()

	errs := make(chan error, 1)
	bus.SubscribeAll(func(ctx context.Context, _ domain.Event) {
		errs <- ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, newEvent(domain.EventSessionReady))
	cancel()
	bus.Close()

	if err := <-errs; err != nil {
		t.Fatalf("handler ctx err = %v", err)
	}
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventSessionReady, func(_ context.Context, _ domain.Event) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionReady))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected handler to have run, got %d", got.Load())
	}

	bus.Publish(context.Background(), newEvent(domain.EventSessionReady))
	bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })
	bus.Publish(context.Background(), newEvent(domain.EventSessionReady))
	time.Sleep(20 * time.Millisecond)
	if got.Load() != 1 {
		t.Fatalf("expected no delivery after close, got %d", got.Load())
	}
	bus.Close()
}
