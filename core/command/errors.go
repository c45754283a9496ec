package command

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/gate/core/queue"
	"github.com/dmitrymomot/gate/core/validator"
)

var (
	// ErrHandlerNotFound is returned when no handler is registered for the command's type.
	ErrHandlerNotFound = errors.New("no handler registered for command")

	// ErrInvalidCommand is returned when a command fails validation before its handler runs.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrHandlerExecution is returned when a handler fails and the exception handler rethrows.
	ErrHandlerExecution = errors.New("handler execution failed")

	// ErrPipelineMisconfiguration signals a defect in registry or chain assembly.
	ErrPipelineMisconfiguration = errors.New("pipeline misconfiguration")

	// ErrDispatcherClosed is returned for submissions after Shutdown.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrResultTypeMismatch is returned by Submit when the handler's result type
	// cannot be read as the requested type.
	ErrResultTypeMismatch = errors.New("result type mismatch")

	// ErrQueueFull is returned when the dispatch queue has no free slot.
	ErrQueueFull = queue.ErrQueueFull
)

// HandlerNotFoundError carries the command that could not be routed.
type HandlerNotFoundError struct {
	Command any
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrHandlerNotFound, commandNameOf(e.Command))
}

func (e *HandlerNotFoundError) Unwrap() error { return ErrHandlerNotFound }

// InvalidCommandError carries the rejected command and its violations.
// Violations is empty when the command's own Validate method returned a plain error.
type InvalidCommandError struct {
	Command    any
	Violations validator.ValidationErrors
	Err        error
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrInvalidCommand, commandNameOf(e.Command), e.Err)
}

func (e *InvalidCommandError) Unwrap() []error { return []error{ErrInvalidCommand, e.Err} }

// HandlerExecutionError carries the command whose handler failed and the handler's error.
type HandlerExecutionError struct {
	Command any
	Err     error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrHandlerExecution, commandNameOf(e.Command), e.Err)
}

func (e *HandlerExecutionError) Unwrap() []error { return []error{ErrHandlerExecution, e.Err} }

// MisconfigurationError describes what is wrong with the pipeline assembly.
type MisconfigurationError struct {
	Detail string
}

func (e *MisconfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPipelineMisconfiguration, e.Detail)
}

func (e *MisconfigurationError) Unwrap() error { return ErrPipelineMisconfiguration }

func misconfigured(format string, args ...any) error {
	return &MisconfigurationError{Detail: fmt.Sprintf(format, args...)}
}
