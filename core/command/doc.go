// Package command provides an in-process command mediator: a type-indexed
// handler registry, an immutable runner chain, listener and exception hooks,
// and an asynchronous dispatcher backed by a bounded worker pool.
//
// Commands represent intent with one-to-one handler relationships. The runtime
// type of the submitted value is the routing key; each type has exactly one
// handler, and a missing handler is an error reported before any runner runs.
//
// # Quick Start
//
//	type Greeting string
//
//	greet := command.NewHandlerFunc(func(ctx context.Context, g Greeting) (int, error) {
//	    return len(g), bus.Publish(ctx, "EVENT_"+string(g))
//	})
//
//	registry, err := command.NewRegistry(greet)
//	if err != nil {
//	    return err
//	}
//
//	dispatcher, err := command.NewDispatcher(registry,
//	    command.WithWorkers(4),
//	    command.WithLogger(logger),
//	    command.WithLoggingEnabled(true),
//	)
//	if err != nil {
//	    return err
//	}
//	defer dispatcher.Shutdown(time.Second)
//
//	n, err := command.Submit[int](ctx, dispatcher, Greeting("hello")).Await()
//
// # Runner Chain
//
// A Chain is built once and reused for every submission. Runners are composed
// outer to inner in the order given and DefaultRunner, which calls the handler,
// is always appended as the innermost step:
//
//	Logging -> Throttling -> Validation -> Default
//
// A runner may work before or after calling next, or return without calling it.
// DefaultRunner accepts no continuation; invoking it with one is reported as
// ErrPipelineMisconfiguration instead of calling the handler.
//
//   - LoggingRunner tags the context with command and command_id attributes
//   - ThrottlingRunner waits for a permit from the command's named limiter
//   - ValidationRunner checks `validate` tags and Validatable commands
//   - TracingRunner opens an OpenTelemetry span per command
//   - ProfilingRunner reports begin and end of each execution
//
// # Throttling
//
// Handlers declare a limiter with WithThrottle. The wait for a permit has no
// timeout: it holds a dispatch worker until the permit is granted or a forced
// shutdown cancels it. Size limiters and worker counts together; a limiter that
// is slower than the submission rate can occupy every worker.
//
// # Listeners and Exceptions
//
// Listeners see every handler invocation: OnBegin before, OnSuccess after a
// result, OnFailure when the handler fails or panics. After the failure hooks
// exactly one ExceptionHandler resolves the failure: the handler's own (set with
// WithExceptionHandler) if present, otherwise the dispatcher default, which logs
// and returns *HandlerExecutionError. A resolver may suppress the failure with a
// substitute result, rethrow it or return another error.
//
// Only handler failures reach listeners. ErrHandlerNotFound and ErrInvalidCommand
// are caller defects and bypass them.
//
// # Errors
//
// All failures are delivered through the future and support errors.Is / errors.As:
//
//	_, err := future.Await()
//	var invalid *command.InvalidCommandError
//	switch {
//	case errors.As(err, &invalid):
//	    return invalid.Violations
//	case errors.Is(err, command.ErrHandlerNotFound):
//	case errors.Is(err, command.ErrHandlerExecution):
//	case errors.Is(err, queue.ErrTaskAbandoned):
//	}
//
// # Shutdown
//
// Shutdown(grace) rejects new submissions with ErrDispatcherClosed, waits for
// queued and running commands, and after grace cancels running commands and
// fails every unfinished future with queue.ErrTaskAbandoned. It returns a
// *queue.ShutdownError carrying the abandoned count. Use Run with errgroup:
//
//	g.Go(dispatcher.Run(ctx))
package command
