package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/gate/pkg/ratelimiter"
)

// tokenBucket refills by whole intervals and consumes only when enough tokens
// remain. A denied request reports the deficit as a negative remaining count.
//
// KEYS[1] bucket hash
// ARGV: tokens, capacity, refill rate, refill interval (ms), now (ms)
// Returns: {remaining, reset at (ms)}
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local tokens = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'refilled_at')
local available = tonumber(state[1])
local refilled = tonumber(state[2])

if available == nil or refilled == nil then
  available = capacity
  refilled = now
end

local elapsed = now - refilled
if elapsed >= interval then
  local periods = math.floor(elapsed / interval)
  available = math.min(capacity, available + periods * rate)
  refilled = refilled + periods * interval
end

local remaining
if tokens <= available then
  available = available - tokens
  remaining = available
else
  remaining = available - tokens
end

redis.call('HSET', key, 'tokens', available, 'refilled_at', refilled)

local periods_to_full = math.ceil((capacity - available) / rate)
local ttl = math.max(periods_to_full, 1) * interval * 2
redis.call('PEXPIRE', key, ttl)

return {remaining, refilled + interval}
`)

// Store keeps token bucket state in Redis so limiters are shared between
// processes. Each consumption is one atomic script call.
type Store struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix namespaces every bucket key.
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewStore creates a Redis-backed ratelimiter.Store.
func NewStore(client redis.UniversalClient, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	s := &Store{
		client: client,
		prefix: "gate:ratelimit:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ConsumeTokens implements ratelimiter.Store.
func (s *Store) ConsumeTokens(ctx context.Context, key string, tokens int, config ratelimiter.Config) (int, time.Time, error) {
	res, err := tokenBucket.Run(ctx, s.client, []string{s.prefix + key},
		tokens,
		config.Capacity,
		config.RefillRate,
		config.RefillInterval.Milliseconds(),
		s.now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("consume tokens %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("consume tokens %s: %w", key, ErrUnexpectedReply)
	}

	return int(res[0]), time.UnixMilli(res[1]), nil
}

// Reset implements ratelimiter.Store.
func (s *Store) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("reset %s: %w", key, err)
	}
	return nil
}
