package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/gate/core/logger"
	"github.com/dmitrymomot/gate/core/validator"
)

const instrumentationName = "github.com/dmitrymomot/gate/core/command"

// DefaultRunners returns the canonical chain: logging, throttling, validation.
// The default runner is appended by BuildChain. A nil throttler skips throttling.
func DefaultRunners(log *slog.Logger, loggingEnabled bool, throttler Throttler) []Runner {
	runners := []Runner{LoggingRunner(log, loggingEnabled)}
	if throttler != nil {
		runners = append(runners, ThrottlingRunner(throttler))
	}
	return append(runners, ValidationRunner())
}

// LoggingRunner tags the context with the command name, the execution id and
// the caller's correlation id, if any, and logs submission and outcome. With
// enabled false, submission and success are logged at DEBUG. Failures are always logged at ERROR and returned unchanged.
//
// The tags live only in the context handed to next, so they disappear on every
// exit path. They reach log records through logger.ContextHandler.
func LoggingRunner(log *slog.Logger, enabled bool) Runner {
	level := slog.LevelDebug
	if enabled {
		level = slog.LevelInfo
	}

	return RunnerFunc(func(ctx context.Context, ec *ExecutionContext, next Next) (any, error) {
		ctx = logger.WithAttrs(ctx,
			logger.Command(ec.CommandName),
			logger.CommandID(ec.ID),
			logger.CorrelationID(CorrelationID(ctx)))

		start := time.Now()
		log.Log(ctx, level, "command submitted", logger.Payload(ec.Command))

		result, err := next(ctx, ec)
		if err != nil {
			log.ErrorContext(ctx, "command failed",
				logger.Error(err),
				logger.Duration(time.Since(start)))
			return result, err
		}

		log.Log(ctx, level, "command succeeded",
			logger.Result(result),
			logger.Duration(time.Since(start)))
		return result, nil
	})
}

// Throttler hands out permits from named limiters.
// *ratelimiter.Limiters implements it.
type Throttler interface {
	Acquire(ctx context.Context, name string) error
}

// ThrottlingRunner blocks until the execution's throttle limiter grants a
// permit. Commands without a limiter pass straight through. Permits are never
// released; the limiter refills on its own schedule.
//
// The wait has no timeout. It ends only when the dispatcher cancels ctx during
// a forced shutdown, so limiters smaller than the concurrent load can occupy
// every dispatch worker.
func ThrottlingRunner(throttler Throttler) Runner {
	return RunnerFunc(func(ctx context.Context, ec *ExecutionContext, next Next) (any, error) {
		name := ec.ThrottleLimiter()
		if name == "" {
			return next(ctx, ec)
		}

		if err := throttler.Acquire(ctx, name); err != nil {
			return nil, fmt.Errorf("throttle %s: %w", name, err)
		}
		return next(ctx, ec)
	})
}

// ValidateFunc checks a command before its handler runs.
type ValidateFunc func(cmd any) error

// Validatable is implemented by commands that check their own invariants.
type Validatable interface {
	Validate() error
}

// ValidateCommand checks `validate` struct tags on struct commands and then
// calls Validate when the command implements Validatable. Commands that are not
// structs skip the tag check.
func ValidateCommand(cmd any) error {
	var errs []error

	if err := validator.ValidateStruct(cmd); err != nil && !errors.Is(err, validator.ErrNotStruct) {
		errs = append(errs, err)
	}
	if v, ok := cmd.(Validatable); ok {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ValidationRunner rejects invalid commands with *InvalidCommandError before
// next is called. Without arguments it uses ValidateCommand.
func ValidationRunner(validate ...ValidateFunc) Runner {
	if len(validate) == 0 {
		validate = []ValidateFunc{ValidateCommand}
	}

	return RunnerFunc(func(ctx context.Context, ec *ExecutionContext, next Next) (any, error) {
		var errs []error
		for _, fn := range validate {
			if err := fn(ec.Command); err != nil {
				errs = append(errs, err)
			}
		}

		if err := errors.Join(errs...); err != nil {
			return nil, &InvalidCommandError{
				Command:    ec.Command,
				Violations: collectViolations(errs),
				Err:        err,
			}
		}
		return next(ctx, ec)
	})
}

func collectViolations(errs []error) validator.ValidationErrors {
	var out validator.ValidationErrors
	for _, err := range errs {
		out = append(out, validator.ExtractValidationErrors(err)...)
	}
	return out
}

// TracingRunner wraps the rest of the chain in an OpenTelemetry span.
// A nil tracer uses the global tracer provider.
func TracingRunner(tracer trace.Tracer) Runner {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return RunnerFunc(func(ctx context.Context, ec *ExecutionContext, next Next) (any, error) {
		ctx, span := tracer.Start(ctx, "command "+ec.CommandName,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("command.name", ec.CommandName),
				attribute.String("command.id", ec.ID),
			))
		defer span.End()

		if limiter := ec.ThrottleLimiter(); limiter != "" {
			span.SetAttributes(attribute.String("command.throttle_limiter", limiter))
		}

		result, err := next(ctx, ec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}

		span.SetStatus(codes.Ok, "")
		return result, nil
	})
}

// Profiler receives begin and end notifications around command execution.
type Profiler interface {
	Begin(ctx context.Context, ec *ExecutionContext)
	End(ctx context.Context, ec *ExecutionContext, elapsed time.Duration, err error)
}

// ProfilingRunner calls profiler.Begin before the rest of the chain and
// profiler.End after it, even when the chain fails or panics.
func ProfilingRunner(profiler Profiler) Runner {
	return RunnerFunc(func(ctx context.Context, ec *ExecutionContext, next Next) (result any, err error) {
		start := time.Now()
		profiler.Begin(ctx, ec)
		defer func() {
			profiler.End(ctx, ec, time.Since(start), err)
		}()
		return next(ctx, ec)
	})
}
