package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/threadline/production-tracker/engine"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Stop()

	var (
		mu  sync.Mutex
		got []engine.Event
	)
	bus.SubscribeFunc(engine.EventStepCompleted, func(ctx context.Context, ev engine.Event) error {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		return nil
	})

	err := bus.Publish(context.Background(), engine.Event{
		Type: engine.EventStepCompleted, OrderID: "o1", ProductID: "p1", StepID: 2,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if got[0].OrderID != "o1" || got[0].StepID != 2 {
		t.Fatalf("delivered event: %+v", got[0])
	}
}

func TestBusDropsUnsubscribedTypes(t *testing.T) {
	bus := NewBus()
	defer bus.Stop()

	if err := bus.Publish(context.Background(), engine.Event{Type: engine.EventOrderCompleted}); err != nil {
		t.Fatalf("publishing without subscribers should be a no-op, got %v", err)
	}
}

func TestBusErrorHandler(t *testing.T) {
	var (
		mu       sync.Mutex
		captured error
	)
	bus := NewBus(WithErrorHandler(func(ev engine.Event, err error) {
		mu.Lock()
		captured = err
		mu.Unlock()
	}))
	defer bus.Stop()

	handlerErr := errors.New("ledger write failed")
	bus.SubscribeFunc(engine.EventOrderCompleted, func(ctx context.Context, ev engine.Event) error {
		return handlerErr
	})

	if err := bus.Publish(context.Background(), engine.Event{Type: engine.EventOrderCompleted}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return captured != nil
	})
	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(captured, handlerErr) {
		t.Fatalf("captured %v", captured)
	}
}

func TestBusStop(t *testing.T) {
	bus := NewBus(WithBufferSize(4))

	var (
		mu    sync.Mutex
		count int
	)
	bus.SubscribeFunc(engine.EventStepCompleted, func(ctx context.Context, ev engine.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := bus.Publish(context.Background(), engine.Event{Type: engine.EventStepCompleted}); err != nil {
			t.Fatal(err)
		}
	}
	// Stop drains queued events before returning.
	bus.Stop()
	mu.Lock()
	if count != 3 {
		t.Fatalf("drained %d events, want 3", count)
	}
	mu.Unlock()

	if err := bus.Publish(context.Background(), engine.Event{Type: engine.EventStepCompleted}); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("publish after stop: %v", err)
	}
}

func TestBusCancelledContext(t *testing.T) {
	bus := NewBus()
	defer bus.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bus.Publish(ctx, engine.Event{Type: engine.EventStepCompleted}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
