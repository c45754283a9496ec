package queue

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNilTask           = errors.New("task is nil")
	ErrQueueFull         = errors.New("queue is full")
	ErrPoolClosed        = errors.New("pool is closed")
	ErrTaskAbandoned     = errors.New("task abandoned by forced shutdown")
	ErrShutdownTimeout   = errors.New("shutdown timeout exceeded")
	ErrHealthcheckFailed = errors.New("healthcheck failed")
	ErrPoolOverloaded    = errors.New("pool is overloaded")
)

// ShutdownError is returned by Pool.Shutdown when the grace period elapsed
// before every task finished.
type ShutdownError struct {
	Timeout time.Duration
	// Abandoned counts tasks that never started plus tasks still running
	// when the grace period ended.
	Abandoned int
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown timeout exceeded after %s: %d task(s) abandoned", e.Timeout, e.Abandoned)
}

func (e *ShutdownError) Unwrap() error {
	return ErrShutdownTimeout
}
