// Package provider defines the storage abstraction used by heycache.
//
// Implementations store text payloads byte-for-byte: Get must return exactly the
// bytes previously passed to Set for a key. Values are replaced wholesale, never
// patched. Every method is a single atomic operation against the store, so callers
// never need client-side locks.
//
// TTL reporting follows the Redis convention: a key without expiry reports
// NoExpiry, a missing key reports Missing.
package provider

import (
	"context"
	"errors"
	"time"
)

const (
	// NoExpiry is reported by TTL for a key that exists without an expiry.
	NoExpiry = time.Duration(-1)
	// Missing is reported by TTL for a key that does not exist.
	Missing = time.Duration(-2)
)

var (
	// ErrUnsupported is returned by stores that cannot answer an operation
	// (e.g. per-key TTL on a store with a global life window).
	ErrUnsupported = errors.New("provider: operation not supported")
	// ErrRejected is returned when the store refused a write under pressure.
	ErrRejected = errors.New("provider: write rejected")
)

// Provider is a minimal text store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with an expiration of exactly ttl. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key. A missing key is not an error.
	Del(ctx context.Context, key string) error

	// TTL returns the remaining time to live, or NoExpiry / Missing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Counter is implemented by stores that can back the fixed-window rate limiter.
type Counter interface {
	// Incr atomically increments key and returns the post-increment count.
	// The first increment of a fresh window sets the key to expire after window.
	// ttl is the time left in the current window.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}
