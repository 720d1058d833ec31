// Package events delivers engine events (step/product/order completed)
// to external subscribers, e.g. a finance hook that books revenue when
// an order finishes production. Delivery is asynchronous; the engine
// itself never publishes, the tracker does.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/threadline/production-tracker/engine"
)

var (
	// ErrBusClosed indicates the bus has been stopped.
	ErrBusClosed = errors.New("event bus is closed")
	// ErrChannelFull indicates the buffer is full and the event was dropped.
	ErrChannelFull = errors.New("event channel is full")
)

// Handler consumes one event.
type Handler interface {
	Handle(ctx context.Context, ev engine.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev engine.Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, ev engine.Event) error {
	return f(ctx, ev)
}

// Bus fans events out to subscribed handlers from a single processing
// goroutine. Handlers for one event run concurrently; handler errors go
// to the configured error handler.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	ch         chan engine.Event
	errHandler func(ev engine.Event, err error)

	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the event channel buffer size.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		b.ch = make(chan engine.Event, n)
	}
}

// WithErrorHandler replaces the default stderr error handler.
func WithErrorHandler(h func(ev engine.Event, err error)) Option {
	return func(b *Bus) {
		b.errHandler = h
	}
}

// NewBus creates a running bus. The default buffer holds 100 events.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		handlers:   make(map[string][]Handler),
		ch:         make(chan engine.Event, 100),
		errHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.wg.Add(1)
	go b.process()
	return b
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// SubscribeFunc registers a function for an event type.
func (b *Bus) SubscribeFunc(eventType string, f func(ctx context.Context, ev engine.Event) error) {
	b.Subscribe(eventType, HandlerFunc(f))
}

// HasSubscribers reports whether any handler is registered for the type.
func (b *Bus) HasSubscribers(eventType string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) > 0
}

// Publish enqueues an event for asynchronous delivery. Events with no
// subscribers are dropped without error.
func (b *Bus) Publish(ctx context.Context, ev engine.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	if !b.HasSubscribers(ev.Type) {
		return nil
	}

	select {
	case b.ch <- ev:
		return nil
	default:
		return ErrChannelFull
	}
}

// Stop drains pending events, closes the channel and waits for the
// processor to exit. Further publishes fail with ErrBusClosed.
func (b *Bus) Stop() {
	b.closeMu.Lock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	b.closeMu.Unlock()
	b.wg.Wait()
}

func (b *Bus) process() {
	defer b.wg.Done()
	for ev := range b.ch {
		b.mu.RLock()
		handlers := make([]Handler, len(b.handlers[ev.Type]))
		copy(handlers, b.handlers[ev.Type])
		b.mu.RUnlock()

		var wg sync.WaitGroup
		for _, h := range handlers {
			wg.Add(1)
			go func(h Handler) {
				defer wg.Done()
				if err := h.Handle(context.Background(), ev); err != nil {
					b.errHandler(ev, err)
				}
			}(h)
		}
		wg.Wait()
	}
}

func defaultErrorHandler(ev engine.Event, err error) {
	fmt.Printf("event handler error: type=%s order=%s: %v\n", ev.Type, ev.OrderID, err)
}
