package event

import "errors"

var (
	// ErrBusClosed is returned when publishing to a closed bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrNilSubscriber is returned when subscribing a nil subscriber.
	ErrNilSubscriber = errors.New("subscriber is nil")

	// ErrInvalidEventType is returned by a subscriber handed an event it cannot accept.
	ErrInvalidEventType = errors.New("invalid event type")
)
