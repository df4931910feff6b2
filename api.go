package heycache

import (
	"context"
	"time"

	"github.com/heyxyz/heycache/expiry"
	pr "github.com/heyxyz/heycache/provider"
)

// TTL sentinels reported by Cache.TTL, following the Redis convention.
const (
	TTLNoExpiry int64 = -1
	TTLMissing  int64 = -2
)

// Options configure a Cache. Every field is optional.
type Options struct {
	// Provider is the backing store. nil disables the cache.
	Provider pr.Provider

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// Prefix namespaces stored keys as "<Prefix>:<key>". Empty = no prefix.
	Prefix string

	// DefaultBand is used when a write passes ttl <= 0. Zero => expiry.ExtraLong.
	DefaultBand expiry.Band
}

// Accessor is the text-level surface handlers depend on. *Cache implements it.
type Accessor interface {
	Enabled() bool
	Get(ctx context.Context, key string) (string, bool)
	SetText(ctx context.Context, key, text string, ttl time.Duration)
	Delete(ctx context.Context, key string) error
	TTL(ctx context.Context, key string) (int64, error)
}

var _ Accessor = (*Cache)(nil)

func New(opts Options) (*Cache, error) {
	return newCache(opts)
}

// Disabled returns a Cache with no store.
func Disabled() *Cache {
	c, _ := newCache(Options{})
	return c
}
