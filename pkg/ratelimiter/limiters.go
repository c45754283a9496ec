package ratelimiter

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Limiters is a fixed set of named token buckets sharing one store.
// The set is built once and never changes, so lookups need no locking.
type Limiters struct {
	buckets map[string]*Bucket
}

// NewLimiters builds one bucket per named configuration.
func NewLimiters(store Store, configs map[string]Config) (*Limiters, error) {
	l := &Limiters{buckets: make(map[string]*Bucket, len(configs))}
	for name, cfg := range configs {
		if name == "" {
			return nil, fmt.Errorf("%w: limiter name is empty", ErrInvalidConfig)
		}
		b, err := NewBucket(store, cfg)
		if err != nil {
			return nil, fmt.Errorf("limiter %q: %w", name, err)
		}
		l.buckets[name] = b
	}
	return l, nil
}

// Has reports whether a limiter called name exists.
func (l *Limiters) Has(name string) bool {
	_, ok := l.buckets[name]
	return ok
}

// Names returns the sorted limiter names.
func (l *Limiters) Names() []string {
	return slices.Sorted(maps.Keys(l.buckets))
}

// Get returns the named bucket.
func (l *Limiters) Get(name string) (*Bucket, bool) {
	b, ok := l.buckets[name]
	return b, ok
}

// Acquire blocks until the named limiter grants a permit or ctx is done.
// Permits are never returned; the bucket refills on its own schedule.
func (l *Limiters) Acquire(ctx context.Context, name string) error {
	b, ok := l.buckets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLimiter, name)
	}
	return b.Wait(ctx, "limiter:"+name)
}
