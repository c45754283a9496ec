package async_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gate/pkg/async"
)

func TestAsync(t *testing.T) {
	t.Parallel()

	t.Run("returns computed value", func(t *testing.T) {
		t.Parallel()

		future := async.Async(context.Background(), 21, func(ctx context.Context, n int) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return n * 2, nil
		})

		v, err := future.Await()
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.True(t, future.IsComplete())
	})

	t.Run("propagates error", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("boom")
		future := async.Async(context.Background(), "x", func(ctx context.Context, s string) (string, error) {
			return "", expected
		})

		_, err := future.Await()
		assert.ErrorIs(t, err, expected)
	})

	t.Run("skips work for cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		future := async.Async(ctx, 1, func(ctx context.Context, n int) (int, error) {
			called = true
			return n, nil
		})

		_, err := future.Await()
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestFutureResolve(t *testing.T) {
	t.Parallel()

	t.Run("first resolution wins", func(t *testing.T) {
		t.Parallel()

		future := async.Pending[string]()
		assert.False(t, future.IsComplete())

		assert.True(t, future.Resolve("first", nil))
		assert.False(t, future.Resolve("second", errors.New("late")))

		v, err := future.Await()
		require.NoError(t, err)
		assert.Equal(t, "first", v)
	})

	t.Run("concurrent resolution is safe", func(t *testing.T) {
		t.Parallel()

		future := async.Pending[int]()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				future.Resolve(n, nil)
			}(i)
		}
		wg.Wait()

		_, err := future.Await()
		require.NoError(t, err)
	})

	t.Run("failed and resolved constructors", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("nope")
		_, err := async.Failed[int](expected).Await()
		assert.ErrorIs(t, err, expected)

		v, err := async.Resolved("ok").Await()
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})
}

func TestFutureWaiting(t *testing.T) {
	t.Parallel()

	t.Run("await with timeout expires", func(t *testing.T) {
		t.Parallel()

		future := async.Pending[int]()
		_, err := future.AwaitWithTimeout(20 * time.Millisecond)
		assert.ErrorIs(t, err, async.ErrTimeout)
	})

	t.Run("await context returns context error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := async.Pending[int]().AwaitContext(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("done channel closes on resolve", func(t *testing.T) {
		t.Parallel()

		future := async.Pending[int]()
		go future.Resolve(7, nil)

		select {
		case <-future.Done():
		case <-time.After(time.Second):
			t.Fatal("future was not resolved")
		}
	})
}

func TestAwaitAll(t *testing.T) {
	t.Parallel()

	t.Run("collects results in order", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		double := func(ctx context.Context, n int) (int, error) { return n * 2, nil }

		results, err := async.AwaitAll(
			async.Async(ctx, 1, double),
			async.Async(ctx, 2, double),
			async.Async(ctx, 3, double),
		)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 4, 6}, results)
	})

	t.Run("returns first error", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("second failed")
		_, err := async.AwaitAll(
			async.Resolved(1),
			async.Failed[int](expected),
			async.Failed[int](errors.New("third failed")),
		)
		assert.ErrorIs(t, err, expected)
	})

	t.Run("no futures", func(t *testing.T) {
		t.Parallel()

		_, err := async.AwaitAll[int]()
		assert.ErrorIs(t, err, async.ErrNoFutures)
	})
}
