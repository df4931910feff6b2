package invalidate

import (
	"context"
	"errors"
	"time"

	"github.com/heyxyz/heycache"
)

// Deleter is the part of heycache.Cache the coordinator needs.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

type Options struct {
	Logger heycache.Logger // if nil, NopLogger is used
	Hooks  heycache.Hooks  // if nil, NopHooks is used
}

// Coordinator deletes the keys of a mutation synchronously, one delete per
// key. Deletes are independent; a failure in one does not stop the rest.
type Coordinator struct {
	reg   *Registry
	cache Deleter
	log   heycache.Logger
	hooks heycache.Hooks
}

func New(reg *Registry, cache Deleter, opts Options) *Coordinator {
	return &Coordinator{
		reg:   reg,
		cache: cache,
		log:   heycache.Coalesce[heycache.Logger](opts.Logger, heycache.NopLogger{}),
		hooks: heycache.Coalesce[heycache.Hooks](opts.Hooks, heycache.NopHooks{}),
	}
}

// Invalidate deletes every key m stales and returns them. It must be called
// after the write has committed and before the response is sent.
//
// Deletes run even if ctx is cancelled; the write already happened and
// skipping its invalidation would leave stale entries behind. Failures are
// collected into *heycache.InvalidateError.
func (c *Coordinator) Invalidate(ctx context.Context, m Mutation) ([]string, error) {
	kind := string(m.Kind())
	ks, err := c.reg.Keys(m)
	if err != nil {
		if errors.Is(err, ErrUnmapped) {
			c.log.Error("invalidation mapping gap; cached data may be stale", heycache.Fields{"kind": kind})
		}
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	var failed map[string]error
	done := make([]string, 0, len(ks))
	for _, k := range ks {
		if derr := c.cache.Delete(ctx, k); derr != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[k] = derr
			c.hooks.InvalidateFailed(kind, k, derr)
			continue
		}
		done = append(done, k)
	}
	c.hooks.Invalidated(kind, done)
	c.log.Debug("invalidated", heycache.Fields{"kind": kind, "keys": ks, "took": time.Since(start).String()})

	if failed != nil {
		ierr := &heycache.InvalidateError{Kind: kind, Failed: failed}
		c.log.Warn("invalidation incomplete", heycache.Fields{"kind": kind, "failed": ierr.Keys()})
		return ks, ierr
	}
	return ks, nil
}

// Registry returns the coordinator's mapping.
func (c *Coordinator) Registry() *Registry { return c.reg }
