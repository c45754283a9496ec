package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/gate/core/logger"
	"github.com/dmitrymomot/gate/core/queue"
)

// Publisher is what handlers depend on to emit events.
type Publisher interface {
	Publish(ctx context.Context, evt any) error
}

// Bus fans events out to subscribers matched by event type.
// A failing or panicking subscriber never affects other subscribers or the publisher.
type Bus struct {
	// subs is replaced on every Subscribe; Publish reads it without locking.
	subs atomic.Pointer[snapshot]
	mu   sync.Mutex // serializes writers of subs

	eventLogger     Subscriber
	pool            *queue.Pool // nil for synchronous delivery
	closed          atomic.Bool
	shutdownTimeout time.Duration
	logger          *slog.Logger
	errorHandler    ErrorHandlerFunc

	// Observability metrics
	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// BusStats provides observability metrics for monitoring and debugging
type BusStats struct {
	Published   int64 // Events with at least one matching subscriber
	Delivered   int64 // Successful deliveries
	Failed      int64 // Deliveries that returned an error, panicked or were abandoned
	Dropped     int64 // Deliveries refused by a full delivery queue
	Subscribers int
	Async       bool
}

// snapshot is an immutable subscriber list with a per-type match cache.
type snapshot struct {
	subs    []Subscriber
	matches sync.Map // reflect.Type -> []Subscriber
}

func (s *snapshot) match(t reflect.Type) []Subscriber {
	if cached, ok := s.matches.Load(t); ok {
		return cached.([]Subscriber)
	}

	var out []Subscriber
	for _, sub := range s.subs {
		if t.AssignableTo(sub.EventType()) {
			out = append(out, sub)
		}
	}

	s.matches.Store(t, out)
	return out
}

// NewBus creates an event bus. Delivery is synchronous unless WithAsyncDelivery is given.
//
// Example:
//
//	bus := event.NewBus(
//	    event.WithAsyncDelivery(4, 256),
//	    event.WithLogger(logger),
//	)
//	bus.Subscribe(event.NewSubscriber("audit", auditHandler))
//	err := bus.Publish(ctx, UserCreated{ID: id})
func NewBus(opts ...Option) *Bus {
	options := &busOptions{
		workers:         4,
		queueSize:       256,
		shutdownTimeout: 5 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
		logEvents:       true,
	}

	for _, opt := range opts {
		opt(options)
	}

	b := &Bus{
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
		errorHandler:    options.errorHandler,
	}
	b.subs.Store(&snapshot{})

	if options.logEvents {
		b.eventLogger = LoggingSubscriber(options.logger, options.loggingEnabled)
	}

	if options.async {
		b.pool = queue.NewPool(
			queue.WithName("event-bus"),
			queue.WithWorkers(options.workers),
			queue.WithQueueSize(options.queueSize),
			queue.WithShutdownTimeout(options.shutdownTimeout),
			queue.WithLogger(options.logger),
		)
	}

	return b
}

// Subscribe registers subscribers. It is safe to call while events are published;
// a publish in flight sees either the old or the new subscriber list.
func (b *Bus) Subscribe(subs ...Subscriber) error {
	for _, s := range subs {
		if s == nil {
			return ErrNilSubscriber
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs.Load()
	next := &snapshot{subs: append(slices.Clip(current.subs), subs...)}
	b.subs.Store(next)

	for _, s := range subs {
		b.logger.Debug("event subscriber registered",
			logger.Subscriber(s.Name()),
			logger.Type(s.EventType().String()))
	}
	return nil
}

// Publish delivers evt to every subscriber whose event type it is assignable to.
// With no matching subscriber it does nothing beyond the built-in event log.
//
// Synchronous buses run subscribers in the caller's goroutine, in subscription
// order. Asynchronous buses queue one delivery per subscriber and return.
// Subscriber failures are never returned; the only errors are ErrBusClosed and,
// for asynchronous buses, queue.ErrQueueFull for deliveries that could not be queued.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if b.eventLogger != nil {
		b.deliver(ctx, b.eventLogger, evt, false)
	}

	if evt == nil {
		return nil
	}

	subs := b.subs.Load().match(reflect.TypeOf(evt))
	if len(subs) == 0 {
		return nil
	}

	b.published.Add(1)

	if b.pool == nil {
		for _, s := range subs {
			b.deliver(ctx, s, evt, true)
		}
		return nil
	}

	var errs []error
	for _, s := range subs {
		if err := b.pool.Submit(b.deliveryTask(ctx, s, evt)); err != nil {
			if errors.Is(err, queue.ErrPoolClosed) {
				return ErrBusClosed
			}
			b.dropped.Add(1)
			b.logger.WarnContext(ctx, "event delivery dropped",
				logger.Event(Name(evt)),
				logger.Subscriber(s.Name()),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("deliver %s to %s: %w", Name(evt), s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events. Asynchronous buses wait up to grace for queued
// deliveries, then abandon the rest; see queue.Pool.Shutdown. Idempotent.
func (b *Bus) Close(grace time.Duration) error {
	b.closed.Store(true)
	if b.pool == nil {
		return nil
	}
	return b.pool.Shutdown(grace)
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (b *Bus) Run(ctx context.Context) func() error {
	return func() error {
		<-ctx.Done()
		_ = b.Close(b.shutdownTimeout) // Abandonment is already logged
		return nil
	}
}

// Healthcheck fails once the bus is closed or while its delivery queue is full.
func (b *Bus) Healthcheck(ctx context.Context) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if b.pool == nil {
		return nil
	}
	return b.pool.Healthcheck(ctx)
}

// Stats returns current bus statistics.
func (b *Bus) Stats() BusStats {
	return BusStats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Failed:      b.failed.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: len(b.subs.Load().subs),
		Async:       b.pool != nil,
	}
}

func (b *Bus) deliveryTask(ctx context.Context, s Subscriber, evt any) queue.Task {
	return queue.NewTask(
		func(poolCtx context.Context) {
			dctx, cancel := queue.DetachedContext(ctx, poolCtx)
			defer cancel()
			b.deliver(dctx, s, evt, true)
		},
		func(err error) {
			b.fail(ctx, s, evt, err)
		},
	)
}

// deliver runs one subscriber with panic recovery. counted is false for the
// built-in event logger, which is not part of the delivery statistics.
func (b *Bus) deliver(ctx context.Context, s Subscriber, evt any, counted bool) {
	if err := safeHandle(ctx, s, evt); err != nil {
		b.fail(ctx, s, evt, err)
		return
	}
	if counted {
		b.delivered.Add(1)
	}
}

func (b *Bus) fail(ctx context.Context, s Subscriber, evt any, err error) {
	b.failed.Add(1)

	b.logger.ErrorContext(ctx, "event delivery failed",
		logger.Event(Name(evt)),
		logger.Subscriber(s.Name()),
		logger.Error(err))

	if b.errorHandler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "event error handler panicked", logger.Panic(r))
		}
	}()
	b.errorHandler(ctx, Delivery{Event: evt, EventName: Name(evt), Subscriber: s.Name()}, err)
}

// safeHandle executes a subscriber with panic recovery.
// If the subscriber panics, the panic is caught and converted to an error.
func safeHandle(ctx context.Context, s Subscriber, evt any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Handle(ctx, evt)
}
