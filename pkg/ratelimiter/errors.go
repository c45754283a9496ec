package ratelimiter

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidTokenCount = errors.New("invalid token count")
	ErrExceedsCapacity   = errors.New("requested tokens exceed bucket capacity")
	ErrUnknownLimiter    = errors.New("unknown limiter")

	// ErrStoreUnavailable wraps failures reported by a Store.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrStoreNotStarted     = errors.New("memory store not started")
	ErrStoreAlreadyStarted = errors.New("memory store already started")
)
