// Package redis connects to Redis and provides a Redis-backed token bucket
// store, so named throttle limiters can be shared by several processes.
//
// # Connecting
//
//	client, err := redis.Connect(ctx, redis.Config{
//		ConnectionURL:  "redis://localhost:6379/0",
//		RetryAttempts:  3,
//		RetryInterval:  time.Second,
//		ConnectTimeout: 30 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Connect accepts redis:// and rediss:// URLs and pings the server with
// exponential backoff until it answers or the timeout elapses.
// Healthcheck returns a ping function for readiness checks.
//
// # Token Bucket Store
//
// Store implements ratelimiter.Store with a Lua script, so refill and
// consumption happen in one atomic step on the server:
//
//	store, err := redis.NewStore(client, redis.WithKeyPrefix("gate:ratelimit:"))
//	limiters, err := ratelimiter.NewLimiters(store, table)
//
// Bucket keys expire once a bucket would have refilled completely.
//
// # Errors
//
//   - ErrEmptyConnectionURL and ErrFailedToParseRedisConnString for bad configuration
//   - ErrRedisNotReady when the server never answered
//   - ErrHealthcheckFailed from Healthcheck
//   - ErrNilClient and ErrUnexpectedReply from Store
package redis
