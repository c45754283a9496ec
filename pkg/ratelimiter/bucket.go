package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Store persists token bucket state.
type Store interface {
	// ConsumeTokens takes tokens from the bucket for key when enough are available.
	// A negative remaining value reports the deficit of a denied request.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)

	// Reset drops the bucket state for key.
	Reset(ctx context.Context, key string) error
}

// RateLimiter is the contract implemented by Bucket.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	AllowN(ctx context.Context, key string, n int) (*Result, error)
	Status(ctx context.Context, key string) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Config describes bucket capacity and refill behaviour.
type Config struct {
	Capacity       int           `yaml:"capacity" json:"capacity"`
	RefillRate     int           `yaml:"refill_rate" json:"refill_rate"`
	RefillInterval time.Duration `yaml:"refill_interval" json:"refill_interval"`
}

// Validate checks that every field is positive.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %s", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// Result reports the outcome of a consumption attempt.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allowed reports whether the request was granted.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before the next refill.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Bucket implements the token bucket algorithm on top of a Store.
type Bucket struct {
	store  Store
	config Config
}

// NewBucket creates a token bucket limiter.
func NewBucket(store Store, config Config) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Bucket{store: store, config: config}, nil
}

// Config returns the bucket configuration.
func (tb *Bucket) Config() Config {
	return tb.config
}

// Allow consumes one token for key.
func (tb *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return tb.AllowN(ctx, key, 1)
}

// AllowN consumes n tokens for key.
func (tb *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTokenCount, n)
	}
	return tb.consume(ctx, key, n)
}

// Status reports the bucket state for key without consuming tokens.
func (tb *Bucket) Status(ctx context.Context, key string) (*Result, error) {
	return tb.consume(ctx, key, 0)
}

// Reset restores the bucket for key to full capacity.
func (tb *Bucket) Reset(ctx context.Context, key string) error {
	return tb.store.Reset(ctx, key)
}

// Wait blocks until one token for key is granted or ctx is done.
func (tb *Bucket) Wait(ctx context.Context, key string) error {
	return tb.WaitN(ctx, key, 1)
}

// WaitN blocks until n tokens for key are granted or ctx is done.
// There is no timeout besides ctx: a caller holding a worker goroutine keeps it
// for as long as the bucket stays empty.
func (tb *Bucket) WaitN(ctx context.Context, key string, n int) error {
	if n > tb.config.Capacity {
		return fmt.Errorf("%w: %d > %d", ErrExceedsCapacity, n, tb.config.Capacity)
	}

	for {
		result, err := tb.AllowN(ctx, key, n)
		if err != nil {
			return err
		}
		if result.Allowed() {
			return nil
		}

		// Sleep at least a millisecond so a clock-skewed reset time cannot spin the loop
		delay := max(result.RetryAfter(), time.Millisecond)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (tb *Bucket) consume(ctx context.Context, key string, n int) (*Result, error) {
	remaining, resetAt, err := tb.store.ConsumeTokens(ctx, key, n, tb.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return &Result{
		Limit:     tb.config.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
