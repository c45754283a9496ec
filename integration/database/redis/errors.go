package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis: connection url is empty")
	ErrFailedToParseRedisConnString = errors.New("redis: cannot parse connection url")
	ErrRedisNotReady                = errors.New("redis: server not reachable after retries")
	ErrHealthcheckFailed            = errors.New("redis: healthcheck failed")

	// Token bucket store
	ErrNilClient       = errors.New("redis: nil client")
	ErrUnexpectedReply = errors.New("redis: unexpected token bucket reply")
)
