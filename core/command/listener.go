package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/gate/core/logger"
)

// Listener observes every handler invocation.
type Listener interface {
	OnBegin(ctx context.Context, ec *ExecutionContext)
	OnSuccess(ctx context.Context, ec *ExecutionContext, result any)
	OnFailure(ctx context.Context, exc *ExceptionContext)
}

// ListenerFuncs adapts optional hook functions to Listener.
type ListenerFuncs struct {
	Begin   func(ctx context.Context, ec *ExecutionContext)
	Success func(ctx context.Context, ec *ExecutionContext, result any)
	Failure func(ctx context.Context, exc *ExceptionContext)
}

func (l ListenerFuncs) OnBegin(ctx context.Context, ec *ExecutionContext) {
	if l.Begin != nil {
		l.Begin(ctx, ec)
	}
}

func (l ListenerFuncs) OnSuccess(ctx context.Context, ec *ExecutionContext, result any) {
	if l.Success != nil {
		l.Success(ctx, ec, result)
	}
}

func (l ListenerFuncs) OnFailure(ctx context.Context, exc *ExceptionContext) {
	if l.Failure != nil {
		l.Failure(ctx, exc)
	}
}

// ExceptionHandler decides the outcome of a failed handler: return a substitute
// result with a nil error to suppress, exc.Err to rethrow, or another error to transform.
// A rethrown exc.Err, or an error wrapping it, reaches the caller as *HandlerExecutionError.
type ExceptionHandler interface {
	HandleException(ctx context.Context, exc *ExceptionContext) (any, error)
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler.
type ExceptionHandlerFunc func(ctx context.Context, exc *ExceptionContext) (any, error)

func (f ExceptionHandlerFunc) HandleException(ctx context.Context, exc *ExceptionContext) (any, error) {
	return f(ctx, exc)
}

// LoggingExceptionHandler logs the failure and rethrows it as *HandlerExecutionError.
// It is the dispatcher's default exception handler.
func LoggingExceptionHandler(log *slog.Logger) ExceptionHandler {
	return ExceptionHandlerFunc(func(ctx context.Context, exc *ExceptionContext) (any, error) {
		log.ErrorContext(ctx, "command handler failed",
			logger.Command(exc.CommandName),
			logger.CommandID(exc.ExecutionID),
			logger.Error(exc.Err))

		var execErr *HandlerExecutionError
		if errors.As(exc.Err, &execErr) {
			return nil, exc.Err
		}
		return nil, &HandlerExecutionError{Command: exc.Command, Err: exc.Err}
	})
}

// exceptionGuard wraps the default runner with listener notification and
// exception resolution. Listener panics are deliberately not recovered here.
type exceptionGuard struct {
	listeners []Listener
	fallback  ExceptionHandler
}

func (g *exceptionGuard) invoke(ctx context.Context, ec *ExecutionContext) (any, error) {
	for _, l := range g.listeners {
		l.OnBegin(ctx, ec)
	}

	result, err := safeRun(ctx, ec)
	if err == nil {
		for _, l := range g.listeners {
			l.OnSuccess(ctx, ec, result)
		}
		return result, nil
	}

	exc := &ExceptionContext{
		ExecutionID: ec.ID,
		Command:     ec.Command,
		CommandName: ec.CommandName,
		Handler:     ec.Handler,
		Err:         err,
	}

	for _, l := range g.listeners {
		l.OnFailure(ctx, exc)
	}

	resolver := g.fallback
	if custom := ec.Handler.Meta().ExceptionHandler; custom != nil {
		resolver = custom
	}

	result, err = resolver.HandleException(ctx, exc)
	if err != nil && errors.Is(err, exc.Err) && !errors.Is(err, ErrHandlerExecution) {
		// A rethrow surfaces as an execution error whichever resolver ran
		return result, &HandlerExecutionError{Command: exc.Command, Err: err}
	}
	return result, err
}

// safeRun executes the default runner with panic recovery.
// A panicking handler is reported as a handler error.
func safeRun(ctx context.Context, ec *ExecutionContext) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler %s panicked: %v", ec.CommandName, r)
		}
	}()
	return DefaultRunner{}.Run(ctx, ec, nil)
}
