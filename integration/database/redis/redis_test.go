package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gate/integration/database/redis"
	"github.com/dmitrymomot/gate/pkg/ratelimiter"
)

func connect(t *testing.T) goredis.UniversalClient {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL is not set")
	}

	client, err := redis.Connect(context.Background(), redis.Config{
		ConnectionURL:  url,
		RetryAttempts:  1,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()

		_, err := redis.Connect(context.Background(), redis.Config{})
		assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()

		_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "http://localhost:6379"})
		assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()

		_, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://127.0.0.1:1/0",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: time.Second,
		})
		assert.ErrorIs(t, err, redis.ErrRedisNotReady)
	})

	t.Run("healthcheck", func(t *testing.T) {
		t.Parallel()

		client := connect(t)
		assert.NoError(t, redis.Healthcheck(client)(context.Background()))
	})
}

func TestStore(t *testing.T) {
	t.Parallel()

	_, err := redis.NewStore(nil)
	assert.ErrorIs(t, err, redis.ErrNilClient)

	client := connect(t)
	ctx := context.Background()
	cfg := ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: 200 * time.Millisecond}

	store, err := redis.NewStore(client, redis.WithKeyPrefix("gate:test:"+uuid.NewString()+":"))
	require.NoError(t, err)

	t.Run("denies without consuming", func(t *testing.T) {
		remaining, _, err := store.ConsumeTokens(ctx, "deny", 2, cfg)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)

		remaining, resetAt, err := store.ConsumeTokens(ctx, "deny", 1, cfg)
		require.NoError(t, err)
		assert.Equal(t, -1, remaining)
		assert.True(t, resetAt.After(time.Now().Add(-time.Second)))
	})

	t.Run("refills by interval", func(t *testing.T) {
		_, _, err := store.ConsumeTokens(ctx, "refill", 2, cfg)
		require.NoError(t, err)

		time.Sleep(250 * time.Millisecond)
		remaining, _, err := store.ConsumeTokens(ctx, "refill", 1, cfg)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})

	t.Run("reset restores capacity", func(t *testing.T) {
		_, _, err := store.ConsumeTokens(ctx, "reset", 2, cfg)
		require.NoError(t, err)
		require.NoError(t, store.Reset(ctx, "reset"))

		remaining, _, err := store.ConsumeTokens(ctx, "reset", 0, cfg)
		require.NoError(t, err)
		assert.Equal(t, 2, remaining)
	})

	t.Run("backs shared limiters", func(t *testing.T) {
		limiters, err := ratelimiter.NewLimiters(store, map[string]ratelimiter.Config{"mail": cfg})
		require.NoError(t, err)

		start := time.Now()
		for range 3 {
			require.NoError(t, limiters.Acquire(ctx, "mail"))
		}
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})
}
