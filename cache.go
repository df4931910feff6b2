package heycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heyxyz/heycache/expiry"
	pr "github.com/heyxyz/heycache/provider"
)

type Cache struct {
	provider pr.Provider
	log      Logger
	hooks    Hooks
	prefix   string
	band     expiry.Band
}

func newCache(opts Options) (*Cache, error) {
	c := &Cache{
		provider: opts.Provider,
		prefix:   opts.Prefix,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.band = coalesce(opts.DefaultBand, expiry.ExtraLong)
	if err := c.band.Validate(); err != nil {
		return nil, fmt.Errorf("heycache: default band: %w", err)
	}

	if c.provider == nil {
		c.log.Warn("cache disabled: no provider configured", nil)
	}
	return c, nil
}

func (c *Cache) Enabled() bool { return c.provider != nil }

// Logger returns the logger the cache was built with.
func (c *Cache) Logger() Logger { return c.log }

// Hooks returns the hooks the cache was built with.
func (c *Cache) Hooks() Hooks { return c.hooks }

func (c *Cache) Close(ctx context.Context) error {
	if c.provider == nil {
		return nil
	}
	return c.provider.Close(ctx)
}

func (c *Cache) storageKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get returns the raw stored text. Store failures are reported and treated
// as a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	b, ok := c.getRaw(ctx, key)
	if !ok {
		return "", false
	}
	return string(b), true
}

// SetText stores text verbatim. ttl <= 0 draws from the default band.
// Store failures are logged and dropped.
func (c *Cache) SetText(ctx context.Context, key, text string, ttl time.Duration) {
	c.setRaw(ctx, key, []byte(text), ttl)
}

// Delete removes key. A missing key is not an error. A store failure is
// logged and returned for diagnostics; callers should not fail a request on it.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.provider == nil {
		return nil
	}
	k := c.storageKey(key)
	if err := c.provider.Del(ctx, k); err != nil {
		c.log.Warn("cache delete failed", Fields{"key": key, "err": err})
		c.hooks.StoreError("del", key, err)
		return err
	}
	return nil
}

// TTL reports the remaining lifetime of key in whole seconds, or
// TTLNoExpiry / TTLMissing.
func (c *Cache) TTL(ctx context.Context, key string) (int64, error) {
	if c.provider == nil {
		return TTLMissing, nil
	}
	d, err := c.provider.TTL(ctx, c.storageKey(key))
	if err != nil {
		if !errors.Is(err, pr.ErrUnsupported) {
			c.hooks.StoreError("ttl", key, err)
		}
		return TTLMissing, err
	}
	switch d {
	case pr.NoExpiry:
		return TTLNoExpiry, nil
	case pr.Missing:
		return TTLMissing, nil
	}
	return int64(d / time.Second), nil
}

func (c *Cache) getRaw(ctx context.Context, key string) ([]byte, bool) {
	if c.provider == nil {
		return nil, false
	}
	b, ok, err := c.provider.Get(ctx, c.storageKey(key))
	if err != nil {
		if ctx.Err() != nil {
			c.log.Debug("cache get abandoned", Fields{"key": key, "err": err})
		} else {
			c.log.Warn("cache get failed; treating as miss", Fields{"key": key, "err": err})
			c.hooks.StoreError("get", key, err)
		}
		c.hooks.CacheMiss(key)
		return nil, false
	}
	if !ok {
		c.hooks.CacheMiss(key)
		return nil, false
	}
	c.hooks.CacheHit(key)
	return b, true
}

func (c *Cache) setRaw(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if c.provider == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.band.Random()
	}
	if err := c.provider.Set(ctx, c.storageKey(key), b, ttl); err != nil {
		if errors.Is(err, pr.ErrRejected) {
			c.log.Debug("cache set rejected by provider (pressure)", Fields{"key": key})
			return
		}
		c.log.Warn("cache set failed; dropped", Fields{"key": key, "ttl": ttl.String(), "err": err})
		c.hooks.StoreError("set", key, err)
	}
}

// dropCorrupt removes an entry that failed to decode. Best effort.
func (c *Cache) dropCorrupt(ctx context.Context, key string, err error) {
	c.log.Warn("cache entry failed to decode; deleting", Fields{"key": key, "err": err})
	if c.provider == nil {
		return
	}
	if derr := c.provider.Del(ctx, c.storageKey(key)); derr != nil {
		c.hooks.StoreError("del", key, derr)
	}
}
