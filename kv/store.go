package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable wraps transport and server failures of the backing store.
	ErrUnavailable = errors.New("kv: store unavailable")
	// ErrInvalidTTL is returned when a write is attempted without a positive TTL.
	ErrInvalidTTL = errors.New("kv: ttl must be positive")
)

// Store is a string key/value store where every record expires.
//
// Implementations must be safe for concurrent use. Set is last-writer-wins.
// CompareAndSet is atomic with respect to every other operation on the same key.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value at key, replacing any previous value and TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// CompareAndSet replaces the value at key with value only when the current
	// value equals expected. It reports whether the swap happened. An absent
	// key never matches.
	CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error)
}
