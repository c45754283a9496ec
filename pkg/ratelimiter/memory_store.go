package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type bucket struct {
	tokens     int
	refilledAt time.Time
	usedAt     time.Time
}

// refill adds RefillRate tokens for every whole interval since the last refill.
// A full bucket restarts its interval at now.
func (b *bucket) refill(now time.Time, cfg Config) {
	elapsed := now.Sub(b.refilledAt)
	if elapsed < cfg.RefillInterval {
		return
	}

	// Bounded so a long idle period cannot overflow the multiplication
	periods := min(int64(elapsed/cfg.RefillInterval), int64(cfg.Capacity/cfg.RefillRate+1))
	b.tokens = min(b.tokens+int(periods)*cfg.RefillRate, cfg.Capacity)
	b.refilledAt = b.refilledAt.Add(time.Duration(periods) * cfg.RefillInterval)
	if b.tokens == cfg.Capacity {
		b.refilledAt = now
	}
}

// MemoryStore keeps token buckets in process memory. Limiters sharing a
// MemoryStore are local to the process; use a Redis store to share them.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	cleanupInterval time.Duration
	staleAfter      time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// Set while the cleanup loop runs
	stop    context.CancelFunc
	stopped chan struct{}

	bucketsCreated atomic.Int64
	bucketsRemoved atomic.Int64
}

// MemoryStoreStats provides observability metrics for monitoring and debugging
type MemoryStoreStats struct {
	BucketsCreated int64
	BucketsRemoved int64
	ActiveBuckets  int
	IsRunning      bool
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle buckets are dropped. Zero disables cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithStaleAfter sets how long a bucket may stay unused before cleanup drops it.
func WithStaleAfter(d time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if d > 0 {
			ms.staleAfter = d
		}
	}
}

// WithMemoryStoreShutdownTimeout bounds how long Stop waits for a running cleanup.
func WithMemoryStoreShutdownTimeout(timeout time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if timeout > 0 {
			ms.shutdownTimeout = timeout
		}
	}
}

func WithMemoryStoreLogger(logger *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// NewMemoryStore creates an in-memory store. Buckets are usable immediately;
// Start or Run only drives the cleanup of idle buckets.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		buckets:         make(map[string]*bucket),
		cleanupInterval: 5 * time.Minute,
		staleAfter:      time.Hour,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

// ConsumeTokens implements Store. A denied request leaves the bucket untouched
// and reports the deficit as a negative remaining count. Consuming zero tokens
// refreshes and reports the bucket state.
func (ms *MemoryStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	b, ok := ms.buckets[key]
	if !ok {
		b = &bucket{tokens: config.Capacity, refilledAt: now}
		ms.buckets[key] = b
		ms.bucketsCreated.Add(1)
	}

	b.refill(now, config)
	b.usedAt = now
	resetAt := b.refilledAt.Add(config.RefillInterval)

	if tokens > b.tokens {
		return b.tokens - tokens, resetAt, nil
	}

	b.tokens -= tokens
	return b.tokens, resetAt, nil
}

// Reset implements Store.
func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.buckets, key)
	return nil
}

// Start runs the cleanup loop until ctx is cancelled or Stop is called.
// It blocks; use Run with errgroup.
func (ms *MemoryStore) Start(ctx context.Context) error {
	if ms.cleanupInterval <= 0 {
		return fmt.Errorf("%w: cleanup interval must be positive, got %s", ErrInvalidConfig, ms.cleanupInterval)
	}

	ms.mu.Lock()
	if ms.stop != nil {
		ms.mu.Unlock()
		return ErrStoreAlreadyStarted
	}
	ctx, ms.stop = context.WithCancel(ctx)
	stopped := make(chan struct{})
	ms.stopped = stopped
	ms.mu.Unlock()

	defer func() {
		ms.mu.Lock()
		ms.stop, ms.stopped = nil, nil
		ms.mu.Unlock()
		close(stopped)
	}()

	ms.logger.DebugContext(ctx, "memory store cleanup started",
		slog.Duration("cleanup_interval", ms.cleanupInterval),
		slog.Duration("stale_after", ms.staleAfter))

	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := ms.removeStale(time.Now()); n > 0 {
				ms.logger.DebugContext(ctx, "memory store removed idle buckets", slog.Int("removed", n))
			}
		}
	}
}

// Stop ends the cleanup loop and waits up to the shutdown timeout for it to exit.
func (ms *MemoryStore) Stop() error {
	ms.mu.Lock()
	stop, stopped := ms.stop, ms.stopped
	ms.mu.Unlock()

	if stop == nil {
		return ErrStoreNotStarted
	}
	stop()

	select {
	case <-stopped:
		return nil
	case <-time.After(ms.shutdownTimeout):
		ms.logger.Warn("memory store shutdown timeout exceeded", slog.Duration("timeout", ms.shutdownTimeout))
		return fmt.Errorf("memory store: shutdown timeout exceeded after %s", ms.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (ms *MemoryStore) Run(ctx context.Context) func() error {
	return func() error {
		err := ms.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

func (ms *MemoryStore) removeStale(now time.Time) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	removed := 0
	for key, b := range ms.buckets {
		if now.Sub(b.usedAt) > ms.staleAfter {
			delete(ms.buckets, key)
			removed++
		}
	}

	ms.bucketsRemoved.Add(int64(removed))
	return removed
}

// Stats returns current memory store statistics.
func (ms *MemoryStore) Stats() MemoryStoreStats {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return MemoryStoreStats{
		BucketsCreated: ms.bucketsCreated.Load(),
		BucketsRemoved: ms.bucketsRemoved.Load(),
		ActiveBuckets:  len(ms.buckets),
		IsRunning:      ms.stop != nil,
	}
}

// Healthcheck fails when cleanup is configured but its loop is not running.
func (ms *MemoryStore) Healthcheck(ctx context.Context) error {
	if ms.cleanupInterval > 0 && !ms.Stats().IsRunning {
		return ErrStoreNotStarted
	}
	return nil
}
