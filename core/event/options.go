package event

import (
	"context"
	"log/slog"
	"time"
)

// Delivery describes one event handed to one subscriber.
type Delivery struct {
	Event      any
	EventName  string
	Subscriber string
}

// ErrorHandlerFunc is called for every failed delivery, including panics and
// deliveries abandoned by a forced Close.
type ErrorHandlerFunc func(ctx context.Context, d Delivery, err error)

// Option configures a Bus.
type Option func(*busOptions)

type busOptions struct {
	async           bool
	workers         int
	queueSize       int
	shutdownTimeout time.Duration
	logger          *slog.Logger
	errorHandler    ErrorHandlerFunc
	logEvents       bool
	loggingEnabled  bool
}

// WithAsyncDelivery delivers events on a dedicated pool of workers goroutines
// with a queue of queueSize deliveries. Publish returns once deliveries are queued.
func WithAsyncDelivery(workers, queueSize int) Option {
	return func(o *busOptions) {
		o.async = true
		if workers > 0 {
			o.workers = workers
		}
		if queueSize >= 0 {
			o.queueSize = queueSize
		}
	}
}

// WithSyncDelivery runs subscribers in the publisher's goroutine. This is the default.
func WithSyncDelivery() Option {
	return func(o *busOptions) {
		o.async = false
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *busOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorHandler sets a callback for failed deliveries.
func WithErrorHandler(fn ErrorHandlerFunc) Option {
	return func(o *busOptions) {
		o.errorHandler = fn
	}
}

// WithShutdownTimeout sets the grace period used by Run when its context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *busOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithLoggingSubscriber sets the level of the built-in event logger:
// INFO when enabled, DEBUG otherwise.
func WithLoggingSubscriber(enabled bool) Option {
	return func(o *busOptions) {
		o.logEvents = true
		o.loggingEnabled = enabled
	}
}

// WithoutLoggingSubscriber removes the built-in event logger.
func WithoutLoggingSubscriber() Option {
	return func(o *busOptions) {
		o.logEvents = false
	}
}
