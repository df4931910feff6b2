package heycache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/heyxyz/heycache/codec"
)

// Typed is a Cache view that serializes V with a fixed codec.
type Typed[V any] struct {
	c     *Cache
	codec codec.Codec[V]
	sf    singleflight.Group
}

// Of binds codec cd to c.
func Of[V any](c *Cache, cd codec.Codec[V]) *Typed[V] {
	return &Typed[V]{c: c, codec: cd}
}

// JSON binds the JSON codec, the format other readers of the store expect.
func JSON[V any](c *Cache) *Typed[V] {
	return Of[V](c, codec.JSON[V]{})
}

// Cache returns the untyped accessor.
func (t *Typed[V]) Cache() *Cache { return t.c }

// Get decodes the entry at key. A payload that does not decode is deleted
// and reported as *DecodeError with ok=false.
func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, ok := t.c.getRaw(ctx, key)
	if !ok {
		return zero, false, nil
	}
	v, err := t.codec.Decode(raw)
	if err != nil {
		t.c.dropCorrupt(ctx, key, err)
		return zero, false, &DecodeError{Key: key, Err: err}
	}
	return v, true, nil
}

// Set encodes v and stores it. ttl <= 0 draws from the default band.
// Only encoding errors are returned; store errors are logged and dropped.
func (t *Typed[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) error {
	b, err := t.codec.Encode(v)
	if err != nil {
		return &EncodeError{Key: key, Err: err}
	}
	t.c.setRaw(ctx, key, b, ttl)
	return nil
}

// GetOrCompute serves key from the cache or, on a miss, calls compute and
// stores its result with ttl. Concurrent misses for the same key in this
// process share one compute call. hit reports whether the value came from
// the cache.
//
// A corrupt entry is deleted and recomputed. An error from compute is
// returned as is and nothing is stored. An encode failure returns the
// computed value together with *EncodeError.
//
// The shared compute runs detached from any single caller's cancellation.
// A caller whose ctx ends stops waiting and gets ctx.Err(); the others
// still receive the result.
func (t *Typed[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (v V, hit bool, err error) {
	v, ok, err := t.Get(ctx, key)
	if ok {
		return v, true, nil
	}
	if err != nil {
		t.c.log.Debug("recomputing after decode failure", Fields{"key": key})
	}

	shared := context.WithoutCancel(ctx)
	ch := t.sf.DoChan(t.c.storageKey(key), func() (any, error) {
		cv, cerr := compute(shared)
		if cerr != nil {
			return cv, cerr
		}
		return cv, t.Set(shared, key, cv, ttl)
	})
	select {
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	case res := <-ch:
		v, _ = res.Val.(V)
		return v, false, res.Err
	}
}

// Delete is Cache.Delete.
func (t *Typed[V]) Delete(ctx context.Context, key string) error { return t.c.Delete(ctx, key) }
