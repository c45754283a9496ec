package command

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
)

// MetaThrottleLimiter is the execution metadata key holding the throttle limiter name.
const MetaThrottleLimiter = "throttle.limiter"

// ExecutionContext carries one submission through the runner chain.
// It is created per Submit and owned by the worker running it; runners may
// change its metadata but must not retain it after the call returns.
type ExecutionContext struct {
	ID          string
	Command     any
	CommandName string
	Handler     Handler
	SubmittedAt time.Time

	metadata map[string]string
}

// NewExecutionContext builds the execution context for cmd handled by h,
// copying the handler's registration metadata.
func NewExecutionContext(cmd any, h Handler) *ExecutionContext {
	meta := h.Meta()

	md := maps.Clone(meta.Values)
	if md == nil {
		md = make(map[string]string, 1)
	}
	if meta.ThrottleLimiter != "" {
		md[MetaThrottleLimiter] = meta.ThrottleLimiter
	}

	return &ExecutionContext{
		ID:          uuid.NewString(),
		Command:     cmd,
		CommandName: h.CommandName(),
		Handler:     h,
		SubmittedAt: time.Now(),
		metadata:    md,
	}
}

// Metadata returns the value stored under key.
func (ec *ExecutionContext) Metadata(key string) (string, bool) {
	v, ok := ec.metadata[key]
	return v, ok
}

// SetMetadata stores value under key for the remaining runners.
func (ec *ExecutionContext) SetMetadata(key, value string) {
	ec.metadata[key] = value
}

// ThrottleLimiter returns the declared throttle limiter name, or "".
func (ec *ExecutionContext) ThrottleLimiter() string {
	return ec.metadata[MetaThrottleLimiter]
}

// ExceptionContext describes a handler failure. It is built only when the
// handler returned an error or panicked.
type ExceptionContext struct {
	ExecutionID string
	Command     any
	CommandName string
	Handler     Handler
	Err         error
}

type executionCtx struct{}

// WithExecution attaches ec to ctx so handlers can reach the execution id and metadata.
func WithExecution(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, executionCtx{}, ec)
}

// ExecutionFromContext extracts the current execution.
// Returns nil outside a dispatched command.
func ExecutionFromContext(ctx context.Context) *ExecutionContext {
	ec, _ := ctx.Value(executionCtx{}).(*ExecutionContext)
	return ec
}

// CommandID returns the execution id from ctx, or "".
func CommandID(ctx context.Context) string {
	if ec := ExecutionFromContext(ctx); ec != nil {
		return ec.ID
	}
	return ""
}

type correlationCtx struct{}

// WithCorrelationID tags ctx with an id shared by every command submitted with
// it, such as a request or batch id. LoggingRunner adds it to log records.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationCtx{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationCtx{}).(string)
	return id
}
