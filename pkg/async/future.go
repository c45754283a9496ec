package async

import (
	"context"
	"sync"
	"time"
)

// Future represents the result of an asynchronous computation.
type Future[T any] struct {
	value T
	err   error
	once  sync.Once
	done  chan struct{}
}

// Pending returns an unresolved future. The caller owns resolution via Resolve.
func Pending[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already completed with value.
func Resolved[T any](value T) *Future[T] {
	f := Pending[T]()
	f.Resolve(value, nil)
	return f
}

// Failed returns a future already completed with err.
func Failed[T any](err error) *Future[T] {
	var zero T
	f := Pending[T]()
	f.Resolve(zero, err)
	return f
}

// Resolve completes the future. Only the first call has an effect;
// it reports whether this call resolved the future.
func (f *Future[T]) Resolve(value T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		resolved = true
		close(f.done)
	})
	return resolved
}

// Await blocks until the future is resolved.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.value, f.err
}

// AwaitContext blocks until the future is resolved or ctx is done.
// Cancelling ctx does not cancel the underlying computation.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout waits for the result for at most timeout.
// Returns ErrTimeout if the future is still pending afterwards.
func (f *Future[T]) AwaitWithTimeout(timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.value, f.err
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}

// IsComplete reports whether the future is resolved without blocking.
func (f *Future[T]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Async executes fn on a new goroutine and returns a future for its result.
func Async[U, T any](ctx context.Context, param U, fn func(context.Context, U) (T, error)) *Future[T] {
	f := Pending[T]()

	go func() {
		// Early exit prevents running work for an already cancelled caller
		if err := ctx.Err(); err != nil {
			var zero T
			f.Resolve(zero, err)
			return
		}
		f.Resolve(fn(ctx, param))
	}()

	return f
}

// AwaitAll waits for all futures and returns the first error in argument order.
func AwaitAll[T any](futures ...*Future[T]) ([]T, error) {
	if len(futures) == 0 {
		return nil, ErrNoFutures
	}

	results := make([]T, len(futures))
	var firstErr error
	for i, future := range futures {
		v, err := future.Await()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		results[i] = v
	}
	return results, firstErr
}
