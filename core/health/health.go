package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/gate/core/logger"
)

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(context.Context) error

// Check is a named dependency check, such as a dispatcher or a Redis client.
type Check struct {
	Name string
	Fn   CheckFunc
}

// NewCheck pairs a name with a check function.
func NewCheck(name string, fn CheckFunc) Check {
	return Check{Name: name, Fn: fn}
}

// Readiness runs every check and returns the joined failures, each wrapped
// with ErrNotReady and the check name. Failures are logged at ERROR.
//
// Example:
//
//	err := health.Readiness(ctx, log,
//		health.NewCheck("dispatcher", dispatcher.Healthcheck),
//		health.NewCheck("redis", redis.Healthcheck(client)),
//	)
func Readiness(ctx context.Context, log *slog.Logger, checks ...Check) error {
	var errs []error
	for _, c := range checks {
		if err := c.Fn(ctx); err != nil {
			log.ErrorContext(ctx, "readiness check failed",
				logger.Component(c.Name),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrNotReady, c.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Monitor returns an errgroup-compatible function that runs Readiness every
// interval until ctx is cancelled. Failures are logged, never returned.
func Monitor(log *slog.Logger, interval time.Duration, checks ...Check) func(ctx context.Context) func() error {
	return func(ctx context.Context) func() error {
		return func() error {
			if interval <= 0 {
				<-ctx.Done()
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := Readiness(ctx, log, checks...); err == nil {
						log.DebugContext(ctx, "readiness check passed", logger.Count("checks", len(checks)))
					}
				}
			}
		}
	}
}
