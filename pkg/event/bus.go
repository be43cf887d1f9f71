package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
	"github.com/jwalitptl/homevisit-api/pkg/logger"
	"github.com/jwalitptl/homevisit-api/pkg/metrics"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Handler consumes domain events. Handlers must not mutate the appointment
// nor publish further events.
type Handler interface {
	Handle(ctx context.Context, evt DomainEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, evt DomainEvent) error

func (f HandlerFunc) Handle(ctx context.Context, evt DomainEvent) error {
	return f(ctx, evt)
}

// Publisher is the side of the bus the booking workflow depends on.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent) error
}

type subscription struct {
	id      uint64
	name    string
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe register.
//
// Delivery is at-most-once, in registration order within a type, on the
// publisher's goroutine. A failing or panicking handler is logged and
// skipped; the remaining handlers still run. There is no retry and no
// persistence of undelivered events.
//
// Subscribe is meant to be called during process start; Bus is nevertheless
// safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]subscription
	nextID   uint64
	closed   bool
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewBus creates an empty bus. m may be nil.
func NewBus(log *logger.Logger, m *metrics.Metrics) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		handlers: make(map[Type][]subscription),
		logger:   log.With("component", "event_bus"),
		metrics:  m,
	}
}

// Subscription identifies one registration; Detach removes it.
type Subscription struct {
	bus       *Bus
	eventType Type
	id        uint64
}

// Detach unregisters the handler. Calling it more than once is harmless.
func (s Subscription) Detach() {
	if s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.handlers[s.eventType]
	for i, sub := range subs {
		if sub.id == s.id {
			s.bus.handlers[s.eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Subscribe registers h for t. name only shows up in logs.
func (b *Bus) Subscribe(t Type, name string, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[t] = append(b.handlers[t], subscription{id: b.nextID, name: name, handler: h})
	return Subscription{bus: b, eventType: t, id: b.nextID}
}

// SubscribeAll registers h for every known event type.
func (b *Bus) SubscribeAll(name string, h Handler) []Subscription {
	subs := make([]Subscription, 0, len(Types))
	for _, t := range Types {
		subs = append(subs, b.Subscribe(t, name, h))
	}
	return subs
}

// HandlerCount returns the number of handlers registered for t.
func (b *Bus) HandlerCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// Publish delivers evt to every handler registered for evt.Type. Handler
// failures never surface here; the only error is ErrBusClosed.
func (b *Bus) Publish(ctx context.Context, evt DomainEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]subscription, len(b.handlers[evt.Type]))
	copy(subs, b.handlers[evt.Type])
	b.mu.RUnlock()

	start := time.Now()
	failures := 0
	for _, sub := range subs {
		if err := b.deliver(ctx, sub, evt); err != nil {
			failures++
			b.logger.ZL.Error().
				Err(err).
				Str("observer", sub.name).
				Str("event_type", string(evt.Type)).
				Str("event_id", evt.ID.String()).
				Str("appointment_id", evt.AppointmentID.String()).
				Msg("observer failed")
		}
	}

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()
		b.metrics.ObserverLatency.WithLabelValues(string(evt.Type)).Observe(time.Since(start).Seconds())
		if failures > 0 {
			b.metrics.ObserverFailures.WithLabelValues(string(evt.Type)).Add(float64(failures))
		}
	}

	b.logger.ZL.Debug().
		Str("event_type", string(evt.Type)).
		Int("handlers", len(subs)).
		Int("failures", failures).
		Msg("event published")
	return nil
}

func (b *Bus) deliver(ctx context.Context, sub subscription, evt DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.ObserverFailure(string(evt.Type), fmt.Errorf("panic: %v", r))
		}
	}()
	if hErr := sub.handler.Handle(ctx, evt); hErr != nil {
		return apperrors.ObserverFailure(string(evt.Type), hErr)
	}
	return nil
}

// Close makes further Publish calls fail and drops all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[Type][]subscription)
}
