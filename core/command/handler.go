package command

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sync"
)

// Handler executes one command type and produces one result type.
type Handler interface {
	// CommandType is the runtime type used as the routing key.
	CommandType() reflect.Type

	// ResultType is the type of the value Handle returns on success.
	ResultType() reflect.Type

	// CommandName is a human readable name for logs and errors.
	CommandName() string

	// Meta returns the registration metadata copied into every ExecutionContext.
	Meta() Meta

	// Handle executes the command. cmd is always of CommandType.
	Handle(ctx context.Context, cmd any) (any, error)
}

// Meta is the per-handler configuration attached at registration time.
type Meta struct {
	// ThrottleLimiter names the limiter every execution must acquire a permit from.
	ThrottleLimiter string

	// ExceptionHandler replaces the dispatcher's default exception handler for this command.
	ExceptionHandler ExceptionHandler

	// Values are free-form entries copied into the execution metadata.
	Values map[string]string
}

// HandlerOption configures handler metadata.
type HandlerOption func(*Meta)

// WithThrottle makes every execution wait for a permit from the named limiter.
func WithThrottle(limiter string) HandlerOption {
	return func(m *Meta) {
		m.ThrottleLimiter = limiter
	}
}

// WithExceptionHandler sets a custom exception handler for this command only.
func WithExceptionHandler(h ExceptionHandler) HandlerOption {
	return func(m *Meta) {
		m.ExceptionHandler = h
	}
}

// WithMetadata adds a free-form metadata entry.
func WithMetadata(key, value string) HandlerOption {
	return func(m *Meta) {
		if m.Values == nil {
			m.Values = make(map[string]string)
		}
		m.Values[key] = value
	}
}

// HandlerFunc is a type-safe Handler built from a plain function.
type HandlerFunc[C, R any] struct {
	name       string
	cmdType    reflect.Type
	resultType reflect.Type
	meta       Meta
	fn         func(context.Context, C) (R, error)
}

// NewHandlerFunc creates a handler for commands of type C returning R.
// The command name is derived from C.
//
// Example:
//
//	type CreateUser struct {
//	    Email string `validate:"required;email"`
//	}
//
//	handler := command.NewHandlerFunc(func(ctx context.Context, cmd CreateUser) (uuid.UUID, error) {
//	    return users.Create(ctx, cmd.Email)
//	}, command.WithThrottle("signup"))
func NewHandlerFunc[C, R any](fn func(context.Context, C) (R, error), opts ...HandlerOption) *HandlerFunc[C, R] {
	var meta Meta
	for _, opt := range opts {
		opt(&meta)
	}

	cmdType := reflect.TypeFor[C]()

	return &HandlerFunc[C, R]{
		name:       commandName(cmdType),
		cmdType:    cmdType,
		resultType: reflect.TypeFor[R](),
		meta:       meta,
		fn:         fn,
	}
}

func (h *HandlerFunc[C, R]) CommandType() reflect.Type { return h.cmdType }

func (h *HandlerFunc[C, R]) ResultType() reflect.Type { return h.resultType }

func (h *HandlerFunc[C, R]) CommandName() string { return h.name }

// Meta returns a copy of the registration metadata.
func (h *HandlerFunc[C, R]) Meta() Meta {
	m := h.meta
	m.Values = maps.Clone(h.meta.Values)
	return m
}

// Handle asserts cmd to C and calls the wrapped function.
func (h *HandlerFunc[C, R]) Handle(ctx context.Context, cmd any) (any, error) {
	c, ok := cmd.(C)
	if !ok {
		return nil, fmt.Errorf("invalid command type: expected %s, got %T", h.cmdType, cmd)
	}

	result, err := h.fn(ctx, c)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// commandNameCache caches reflection results for command name lookups.
var commandNameCache sync.Map

// commandName derives the command name from a reflect.Type.
// Pointers are dereferenced; unnamed types fall back to their string form.
func commandName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	if name, ok := commandNameCache.Load(t); ok {
		return name.(string)
	}

	original := t
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	}

	commandNameCache.Store(original, name)
	return name
}

func commandNameOf(cmd any) string {
	return commandName(reflect.TypeOf(cmd))
}
