package queue

import (
	"log/slog"
	"time"
)

// PoolOption is a functional option for configuring a pool
type PoolOption func(*poolOptions)

type poolOptions struct {
	name            string
	workers         int
	queueSize       int
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// WithName sets the pool name used in log records.
func WithName(name string) PoolOption {
	return func(o *poolOptions) {
		if name != "" {
			o.name = name
		}
	}
}

func WithWorkers(n int) PoolOption {
	return func(o *poolOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueSize(n int) PoolOption {
	return func(o *poolOptions) {
		if n >= 0 {
			o.queueSize = n
		}
	}
}

// WithShutdownTimeout sets the grace period used by Run when its context is cancelled.
func WithShutdownTimeout(d time.Duration) PoolOption {
	return func(o *poolOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) PoolOption {
	return func(o *poolOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
