package eventbus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBus(opts ...Option) *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventSessionStarted, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventSessionStarted {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionStarted))
	bus.Publish(context.Background(), newEvent(domain.EventSessionStopped))
	bus.Close() // drain
	assert.Equal(t, int32(1), got.Load())
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionStarted))
	bus.Publish(context.Background(), newEvent(domain.EventStateCommitted))
	bus.Close()
	assert.Equal(t, int32(2), got.Load())
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventSessionStarted, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	unsubAll := bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	unsub()
	unsubAll()

	bus.Publish(context.Background(), newEvent(domain.EventSessionStarted))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), got.Load())
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

	var want []string
	for i := 0; i < 200; i++ {
		id := string(rune('a' + i%26))
		want = append(want, id)
		bus.Publish(context.Background(), domain.Event{Type: domain.EventStateCommitted, SessionID: id})
	}
	bus.Close()
	assert.Equal(t, want, seen)
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventStateCommitted, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventStateCommitted))
		}()
	}
	wg.Wait()
	bus.Close()
	assert.Equal(t, int32(100), got.Load())
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	var calls atomic.Int32
	bus.Subscribe(domain.EventSessionFailed, func(_ context.Context, _ domain.Event) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	})
	bus.Subscribe(domain.EventSessionFailed, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionFailed))
	bus.Publish(context.Background(), newEvent(domain.EventSessionFailed))
	bus.Close()

	assert.Equal(t, int32(2), got.Load())
	assert.Equal(t, int32(2), calls.Load(), "a panicking handler keeps receiving events")
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := newTestBus(WithQueueSize(1))

	release := make(chan struct{})
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		<-release
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(context.Background(), newEvent(domain.EventStateCommitted))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	close(release)
	bus.Close()
	assert.GreaterOrEqual(t, bus.Dropped(), uint64(8))
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventSessionStarted, func(_ context.Context, _ domain.Event) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventSessionStarted))
	bus.Close()
	require.Equal(t, int32(1), got.Load())

	bus.Publish(context.Background(), newEvent(domain.EventSessionStarted))
	bus.Subscribe(domain.EventSessionStarted, func(context.Context, domain.Event) { got.Add(1) })()
	bus.Close()
	assert.Equal(t, int32(1), got.Load())
}

func TestForwardStore(t *testing.T) {
	bus := newTestBus()
	store := projection.NewStore(domain.NewProjection(""))

	var mu sync.Mutex
	var events []domain.Event
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	stop := ForwardStore(store, bus)

	tok := store.Begin()
	acting := domain.PhaseActing
	store.Commit(tok, domain.Delta{
		Phase:   &acting,
		Entries: []domain.LogEntry{{ID: "1", Level: domain.LevelInfo, Message: "ok"}},
	})
	store.ClearLogs()
	stop()
	store.Commit(tok, domain.Delta{Entries: []domain.LogEntry{{ID: "2"}}})
	bus.Close()

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStateCommitted, events[0].Type)
	assert.Equal(t, domain.EventLogsCleared, events[1].Type)

	var p domain.StateCommittedPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &p))
	assert.Equal(t, uint64(1), p.Seq)
	assert.Equal(t, domain.PhaseActing, p.Projection.Phase)
	require.Len(t, p.Appended, 1)
	assert.Equal(t, "ok", p.Appended[0].Message)
}
