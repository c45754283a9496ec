package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/gate/core/logger"
	"github.com/dmitrymomot/gate/core/queue"
	"github.com/dmitrymomot/gate/pkg/async"
)

// Dispatcher routes commands to their handlers and executes them through the
// runner chain on a bounded worker pool.
//
// Example:
//
//	registry, err := command.NewRegistry(
//	    command.NewHandlerFunc(createUser),
//	)
//	dispatcher, err := command.NewDispatcher(registry,
//	    command.WithWorkers(8),
//	    command.WithThrottler(limiters),
//	    command.WithLogger(logger),
//	)
//	id, err := command.Submit[uuid.UUID](ctx, dispatcher, CreateUser{Email: "a@b.c"}).Await()
type Dispatcher struct {
	registry        *Registry
	chain           *Chain
	entry           Next
	pool            *queue.Pool
	logger          *slog.Logger
	shutdownTimeout time.Duration

	// Observability metrics
	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	abandoned atomic.Int64
}

// DispatcherStats provides observability metrics for monitoring and debugging
type DispatcherStats struct {
	Submitted int64 // Commands accepted by the pool
	Succeeded int64 // Futures resolved with a result
	Failed    int64 // Futures resolved with an error after execution
	Rejected  int64 // Submissions refused before execution (not found, full, closed)
	Abandoned int64 // Commands given up on by a forced shutdown
	Active    int32 // Commands currently executing
	Queued    int   // Commands waiting for a worker
}

// limiterIndex is implemented by throttlers that can report configured limiters.
type limiterIndex interface {
	Has(name string) bool
}

// NewDispatcher seals registry, builds the chain once and starts the worker pool.
// Every throttle limiter declared by a handler must be known to the throttler.
func NewDispatcher(registry *Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, misconfigured("registry is nil")
	}

	options := &dispatcherOptions{
		workers:         4,
		queueSize:       256,
		shutdownTimeout: 5 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}

	for _, opt := range opts {
		opt(options)
	}

	chain := options.chain
	switch {
	case chain != nil && options.runnersSet:
		return nil, misconfigured("both a chain and runners were provided")
	case chain == nil:
		runners := options.runners
		if !options.runnersSet {
			runners = DefaultRunners(options.logger, options.loggingEnabled, options.throttler)
		}
		var err error
		if chain, err = BuildChain(runners...); err != nil {
			return nil, err
		}
	}

	if err := checkLimiters(registry, options); err != nil {
		return nil, err
	}

	registry.seal()

	fallback := options.exceptionHandler
	if fallback == nil {
		fallback = LoggingExceptionHandler(options.logger)
	}
	guard := &exceptionGuard{
		listeners: options.listeners,
		fallback:  fallback,
	}

	d := &Dispatcher{
		registry:        registry,
		chain:           chain,
		entry:           chain.compose(guard.invoke),
		logger:          options.logger,
		shutdownTimeout: options.shutdownTimeout,
		pool: queue.NewPool(
			queue.WithName("command-dispatcher"),
			queue.WithWorkers(options.workers),
			queue.WithQueueSize(options.queueSize),
			queue.WithShutdownTimeout(options.shutdownTimeout),
			queue.WithLogger(options.logger),
		),
	}

	for _, h := range registry.Handlers() {
		d.logger.Debug("command handler registered",
			logger.Command(h.CommandName()),
			logger.Type(h.ResultType().String()),
			logger.Limiter(h.Meta().ThrottleLimiter))
	}

	return d, nil
}

func checkLimiters(registry *Registry, options *dispatcherOptions) error {
	index, canCheck := options.throttler.(limiterIndex)

	for _, h := range registry.Handlers() {
		name := h.Meta().ThrottleLimiter
		if name == "" {
			continue
		}
		if options.throttler == nil {
			if options.runnersSet || options.chain != nil {
				continue // a custom chain brings its own throttling
			}
			return misconfigured("command %s declares limiter %q but no throttler is configured", h.CommandName(), name)
		}
		if canCheck && !index.Has(name) {
			return misconfigured("command %s declares unknown limiter %q", h.CommandName(), name)
		}
	}
	return nil
}

// Submit schedules cmd and returns immediately. The future resolves with the
// handler's result or with the error that ended the chain. An unregistered
// command yields an already-failed future without touching the pool.
//
// ctx supplies values such as logging attributes; its cancellation does not
// cancel the command. Only a forced Shutdown does.
func (d *Dispatcher) Submit(ctx context.Context, cmd any) *async.Future[any] {
	h, err := d.registry.Resolve(cmd)
	if err != nil {
		d.rejected.Add(1)
		return async.Failed[any](err)
	}

	future := async.Pending[any]()
	if err := d.schedule(ctx, cmd, h, future.Resolve); err != nil {
		return async.Failed[any](err)
	}
	return future
}

// Submit schedules cmd on d and returns a future typed as R. It fails fast with
// ErrResultTypeMismatch when the handler's result type is not assignable to R.
func Submit[R any](ctx context.Context, d *Dispatcher, cmd any) *async.Future[R] {
	h, err := d.registry.Resolve(cmd)
	if err != nil {
		d.rejected.Add(1)
		return async.Failed[R](err)
	}

	want := reflect.TypeFor[R]()
	if !h.ResultType().AssignableTo(want) {
		d.rejected.Add(1)
		return async.Failed[R](fmt.Errorf("%w: %s returns %s, requested %s",
			ErrResultTypeMismatch, h.CommandName(), h.ResultType(), want))
	}

	future := async.Pending[R]()
	resolve := func(v any, err error) bool {
		var zero R
		if err != nil {
			return future.Resolve(zero, err)
		}
		if v == nil {
			// A suppressing exception handler may substitute nil
			return future.Resolve(zero, nil)
		}
		r, ok := v.(R)
		if !ok {
			return future.Resolve(zero, fmt.Errorf("%w: got %T, requested %s", ErrResultTypeMismatch, v, want))
		}
		return future.Resolve(r, nil)
	}

	if err := d.schedule(ctx, cmd, h, resolve); err != nil {
		return async.Failed[R](err)
	}
	return future
}

// Shutdown stops accepting commands and waits up to grace for queued and
// running ones. After grace, running commands see their context cancelled and
// every unfinished future resolves with queue.ErrTaskAbandoned; the returned
// *queue.ShutdownError reports how many were abandoned. Idempotent.
// The pool logs the abandoned count as a warning.
func (d *Dispatcher) Shutdown(grace time.Duration) error {
	return d.pool.Shutdown(grace)
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// The returned function blocks until ctx is cancelled and then shuts down
// with the configured timeout.
func (d *Dispatcher) Run(ctx context.Context) func() error {
	return func() error {
		<-ctx.Done()
		_ = d.Shutdown(d.shutdownTimeout) // Abandonment is already logged
		return nil
	}
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() DispatcherStats {
	ps := d.pool.Stats()
	return DispatcherStats{
		Submitted: d.submitted.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
		Rejected:  d.rejected.Load(),
		Abandoned: d.abandoned.Load(),
		Active:    ps.Active,
		Queued:    ps.Queued,
	}
}

// Healthcheck reports whether the dispatcher accepts commands.
func (d *Dispatcher) Healthcheck(ctx context.Context) error {
	return d.pool.Healthcheck(ctx)
}

// Chain returns the dispatcher's runner chain.
func (d *Dispatcher) Chain() *Chain {
	return d.chain
}

func (d *Dispatcher) schedule(ctx context.Context, cmd any, h Handler, resolve func(any, error) bool) error {
	task := &dispatchTask{
		d:       d,
		ctx:     ctx,
		ec:      NewExecutionContext(cmd, h),
		resolve: resolve,
	}

	if err := d.pool.Submit(task); err != nil {
		d.rejected.Add(1)
		if errors.Is(err, queue.ErrPoolClosed) {
			return ErrDispatcherClosed
		}
		return err
	}

	d.submitted.Add(1)
	return nil
}

// dispatchTask runs one ExecutionContext through the chain on a pool worker.
type dispatchTask struct {
	d       *Dispatcher
	ctx     context.Context
	ec      *ExecutionContext
	resolve func(any, error) bool
}

func (t *dispatchTask) Run(poolCtx context.Context) {
	// Keep the submitter's values, drop its cancellation, follow the pool's
	ctx, cancel := queue.DetachedContext(t.ctx, poolCtx)
	defer cancel()

	result, err := t.execute(WithExecution(ctx, t.ec))
	if !t.resolve(result, err) {
		return // abandoned while running
	}

	if err != nil {
		t.d.failed.Add(1)
		return
	}
	t.d.succeeded.Add(1)
}

func (t *dispatchTask) Abandon(err error) {
	if t.resolve(nil, err) {
		t.d.abandoned.Add(1)
	}
}

// execute runs the chain and converts a panic outside the handler, such as a
// misbehaving listener or runner, into an error on the future.
func (t *dispatchTask) execute(ctx context.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("command %s: pipeline panicked: %v", t.ec.CommandName, r)
			t.d.logger.ErrorContext(ctx, "command pipeline panicked",
				logger.Command(t.ec.CommandName),
				logger.CommandID(t.ec.ID),
				logger.Panic(r))
		}
	}()
	return t.d.entry(ctx, t.ec)
}
