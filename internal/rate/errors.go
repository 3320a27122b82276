package rate

import "errors"

var (
	// ErrRateLimited is returned once a key has used up its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read/write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
