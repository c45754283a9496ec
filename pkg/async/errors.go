package async

import "errors"

var (
	// ErrTimeout is returned by AwaitWithTimeout when the future is not resolved in time.
	ErrTimeout = errors.New("async: timeout waiting for result")

	// ErrNoFutures is returned by coordination helpers called without futures.
	ErrNoFutures = errors.New("async: no futures provided")
)
