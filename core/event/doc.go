// Package event provides an in-process publish/subscribe bus decoupled from the
// command pipeline.
//
// Subscribers declare the event type they accept. An event reaches every
// subscriber whose type it is assignable to, so a subscriber for an interface
// sees every implementation and a subscriber for any sees every event.
//
// # Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	bus.Subscribe(event.NewSubscriber("welcome-mail", func(ctx context.Context, evt UserCreated) error {
//	    return mailer.SendWelcome(ctx, evt.Email)
//	}))
//
//	err := bus.Publish(ctx, UserCreated{Email: "user@example.com"})
//
// # Delivery Modes
//
// The mode is fixed at construction. By default subscribers run synchronously
// in the publisher's goroutine and Publish returns after all of them. With
// WithAsyncDelivery(workers, queueSize) each delivery is queued on a dedicated
// worker pool and Publish returns immediately; Close drains the pool with the
// same grace-then-abandon discipline as the command dispatcher.
//
// # Failure Isolation
//
// Each delivery is its own failure domain. A subscriber error or panic is
// logged, counted and passed to the WithErrorHandler callback; remaining
// subscribers still run and the publisher never sees the error. Publish only
// fails with ErrBusClosed or, in asynchronous mode, when the delivery queue is
// full (queue.ErrQueueFull).
//
// Publishing has no transactional meaning: an event published by a command
// handler that later fails stays published.
//
// # Event Logging
//
// A built-in logging subscriber records every published event, including
// events nobody subscribed to, at INFO when WithLoggingSubscriber(true) and
// DEBUG otherwise. WithoutLoggingSubscriber removes it.
package event
