package command

import (
	"log/slog"
	"time"
)

// Option configures a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	workers          int
	queueSize        int
	runners          []Runner
	runnersSet       bool
	chain            *Chain
	listeners        []Listener
	exceptionHandler ExceptionHandler
	throttler        Throttler
	logger           *slog.Logger
	loggingEnabled   bool
	shutdownTimeout  time.Duration
}

// WithWorkers sets the number of dispatch goroutines.
func WithWorkers(n int) Option {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets how many submissions may wait for a worker.
func WithQueueSize(n int) Option {
	return func(o *dispatcherOptions) {
		if n >= 0 {
			o.queueSize = n
		}
	}
}

// WithRunners replaces the default runners. The default runner is appended automatically.
func WithRunners(runners ...Runner) Option {
	return func(o *dispatcherOptions) {
		o.runners = runners
		o.runnersSet = true
	}
}

// WithChain uses a prebuilt chain instead of building one from runners.
func WithChain(c *Chain) Option {
	return func(o *dispatcherOptions) {
		o.chain = c
	}
}

// WithListener adds listeners notified around every handler invocation, in registration order.
func WithListener(listeners ...Listener) Option {
	return func(o *dispatcherOptions) {
		for _, l := range listeners {
			if l != nil {
				o.listeners = append(o.listeners, l)
			}
		}
	}
}

// WithDefaultExceptionHandler replaces the process-wide exception handler used
// for commands without a custom one.
func WithDefaultExceptionHandler(h ExceptionHandler) Option {
	return func(o *dispatcherOptions) {
		if h != nil {
			o.exceptionHandler = h
		}
	}
}

// WithThrottler sets the permit source for the default throttling runner.
func WithThrottler(t Throttler) Option {
	return func(o *dispatcherOptions) {
		o.throttler = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLoggingEnabled raises command submission and success logs to INFO.
func WithLoggingEnabled(enabled bool) Option {
	return func(o *dispatcherOptions) {
		o.loggingEnabled = enabled
	}
}

// WithShutdownTimeout sets the grace period used by Run when its context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}
