package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
)

var (
	ErrEventNameRequired = errors.New("event name is required")
	ErrHandlerRequired   = errors.New("event handler is required")
	ErrEventRequired     = errors.New("event is required")
)

// Handler receives one event. Handlers run synchronously on the publishing goroutine.
type Handler func(ctx context.Context, event events.Event) error

// Bus is an in-process publish/subscribe hub. Publish invokes every handler
// subscribed to the event's name, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func New() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

func (b *Bus) Subscribe(eventName string, handler Handler) error {
	name := strings.TrimSpace(eventName)
	if name == "" {
		return ErrEventNameRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
	return nil
}

// Publish delivers event. Every handler runs even if an earlier one failed;
// the returned error joins all failures.
func (b *Bus) Publish(ctx context.Context, event events.Event) error {
	if event == nil {
		return ErrEventRequired
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handle %s: %w", event.EventName(), err))
		}
	}
	return errors.Join(errs...)
}

// Subscribers returns the number of handlers for eventName.
func (b *Bus) Subscribers(eventName string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventName])
}

// Fanout publishes each event to every publisher in order, e.g. the local bus
// and kafka.
type Fanout []interfaces.EventPublisher

func (f Fanout) Publish(ctx context.Context, event events.Event) error {
	var errs []error
	for _, publisher := range f {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ interfaces.EventPublisher = (*Bus)(nil)
	_ interfaces.EventPublisher = Fanout(nil)
)
