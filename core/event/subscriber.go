package event

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/dmitrymomot/gate/core/logger"
)

// HandlerFunc is a type-safe function signature for processing events of type T.
type HandlerFunc[T any] func(context.Context, T) error

// Subscriber reacts to published events whose type is assignable to EventType.
type Subscriber interface {
	// Name identifies the subscriber in logs and delivery errors.
	Name() string

	// EventType is the type the subscriber accepts. Interface types match every
	// event implementing them, so a subscriber for any sees all events.
	EventType() reflect.Type

	// Handle processes one event.
	Handle(ctx context.Context, evt any) error
}

// NewSubscriber creates a type-safe subscriber for events of type T.
// An empty name is replaced by the event type name.
//
// Example:
//
//	sub := event.NewSubscriber("welcome-mail", func(ctx context.Context, evt UserCreated) error {
//	    return mailer.SendWelcome(ctx, evt.Email)
//	})
//	bus.Subscribe(sub)
func NewSubscriber[T any](name string, fn HandlerFunc[T]) Subscriber {
	t := reflect.TypeFor[T]()
	if name == "" {
		name = typeName(t)
	}

	return &subscriberFunc[T]{
		name:      name,
		eventType: t,
		fn:        fn,
	}
}

type subscriberFunc[T any] struct {
	name      string
	eventType reflect.Type
	fn        HandlerFunc[T]
}

func (s *subscriberFunc[T]) Name() string { return s.name }

func (s *subscriberFunc[T]) EventType() reflect.Type { return s.eventType }

func (s *subscriberFunc[T]) Handle(ctx context.Context, evt any) error {
	typed, ok := evt.(T)
	if !ok {
		return fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidEventType, s.name, s.eventType, evt)
	}
	return s.fn(ctx, typed)
}

// LoggingSubscriber observes every event and writes "event published" records
// with the event type and value, at INFO when enabled and DEBUG otherwise.
func LoggingSubscriber(log *slog.Logger, enabled bool) Subscriber {
	level := slog.LevelDebug
	if enabled {
		level = slog.LevelInfo
	}

	return NewSubscriber("event-logger", func(ctx context.Context, evt any) error {
		log.Log(ctx, level, "event published",
			logger.Event(Name(evt)),
			logger.Payload(evt))
		return nil
	})
}

// Name returns the event name derived from its runtime type: the type name for
// named types (pointers dereferenced), the type string otherwise.
func Name(evt any) string {
	return typeName(reflect.TypeOf(evt))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
