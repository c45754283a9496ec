package ratelimiter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gate/pkg/ratelimiter"
)

type failingStore struct{}

func (failingStore) ConsumeTokens(context.Context, string, int, ratelimiter.Config) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func (failingStore) Reset(context.Context, string) error { return nil }

func TestNewBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config ratelimiter.Config
	}{
		{"zero capacity", ratelimiter.Config{Capacity: 0, RefillRate: 1, RefillInterval: time.Second}},
		{"negative refill rate", ratelimiter.Config{Capacity: 1, RefillRate: -1, RefillInterval: time.Second}},
		{"zero interval", ratelimiter.Config{Capacity: 1, RefillRate: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), tt.config)
			assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
		})
	}

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()
		_, err := ratelimiter.NewBucket(nil, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})
}

func TestBucket_Allow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	config := ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Hour}

	t.Run("exhausts then denies", func(t *testing.T) {
		t.Parallel()
		tb, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), config)
		require.NoError(t, err)

		for i := range 3 {
			result, err := tb.Allow(ctx, "k")
			require.NoError(t, err)
			assert.True(t, result.Allowed())
			assert.Equal(t, 2-i, result.Remaining)
			assert.Equal(t, 3, result.Limit)
			assert.Zero(t, result.RetryAfter())
		}

		result, err := tb.Allow(ctx, "k")
		require.NoError(t, err)
		assert.False(t, result.Allowed())
		assert.Positive(t, result.RetryAfter())
	})

	t.Run("allow n rejects non-positive", func(t *testing.T) {
		t.Parallel()
		tb, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), config)
		require.NoError(t, err)

		_, err = tb.AllowN(ctx, "k", 0)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
	})

	t.Run("status does not consume", func(t *testing.T) {
		t.Parallel()
		tb, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), config)
		require.NoError(t, err)

		_, err = tb.Allow(ctx, "k")
		require.NoError(t, err)

		status, err := tb.Status(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 2, status.Remaining)

		status, err = tb.Status(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 2, status.Remaining)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		t.Parallel()
		tb, err := ratelimiter.NewBucket(failingStore{}, config)
		require.NoError(t, err)

		_, err = tb.Allow(ctx, "k")
		assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestBucket_Wait(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	config := ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: 100 * time.Millisecond}

	t.Run("blocks until refill", func(t *testing.T) {
		t.Parallel()
		tb, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), config)
		require.NoError(t, err)

		require.NoError(t, tb.Wait(ctx, "k"))

		start := time.Now()
		require.NoError(t, tb.Wait(ctx, "k"))
		assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	})

	t.Run("honours context", func(t *testing.T) {
		t.Parallel()
		slow := ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour}
		tb, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), slow)
		require.NoError(t, err)

		require.NoError(t, tb.Wait(ctx, "k"))

		wctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, tb.Wait(wctx, "k"), context.DeadlineExceeded)
	})

	t.Run("more than capacity never succeeds", func(t *testing.T) {
		t.Parallel()
		tb, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), config)
		require.NoError(t, err)

		assert.ErrorIs(t, tb.WaitN(ctx, "k", 2), ratelimiter.ErrExceedsCapacity)
	})
}
