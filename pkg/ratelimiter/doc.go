// Package ratelimiter provides token bucket rate limiting with pluggable storage backends.
//
// A bucket holds up to Capacity tokens and regains RefillRate tokens every
// RefillInterval. A request for n tokens is granted only when n tokens are
// available; a denied request leaves the bucket untouched and reports its
// deficit as a negative Result.Remaining.
//
// # Buckets
//
//	store := ratelimiter.NewMemoryStore()
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       100,
//		RefillRate:     10,
//		RefillInterval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//
//	result, err := limiter.Allow(ctx, "user:123")
//	if err != nil {
//		return err
//	}
//	if !result.Allowed() {
//		return fmt.Errorf("retry in %s", result.RetryAfter())
//	}
//
// Status reports the bucket without consuming. Wait and WaitN block until the
// bucket grants the tokens, sleeping until the next refill between attempts.
// Only ctx ends the wait early.
//
// # Named limiters
//
// Limiters is an immutable table of named buckets sharing one store. It backs
// command throttling: Acquire(ctx, name) blocks until the limiter called name
// grants one permit. Permits are consumed, never released.
//
//	limiters, err := ratelimiter.NewLimiters(store, map[string]ratelimiter.Config{
//		"mail": {Capacity: 5, RefillRate: 1, RefillInterval: time.Second},
//	})
//	if err := limiters.Acquire(ctx, "mail"); err != nil {
//		return err
//	}
//
// # Storage backends
//
// MemoryStore keeps buckets in process. While Start (or Run in an errgroup)
// is running it drops buckets idle longer than an hour, see WithStaleAfter.
// A Redis-backed Store lives in integration/database/redis for limits shared
// between instances.
//
// # Errors
//
//   - ErrInvalidConfig: non-positive capacity, refill rate or interval
//   - ErrInvalidTokenCount: AllowN with n <= 0
//   - ErrExceedsCapacity: WaitN for more tokens than the bucket can ever hold
//   - ErrUnknownLimiter: Acquire with a name that is not configured
//   - ErrStoreUnavailable: wraps any storage backend failure
package ratelimiter
