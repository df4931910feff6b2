// Package asynchook moves hook work off the request path. Events are queued
// to a fixed pool of workers and dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitMissEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := heycache.New(heycache.Options{Provider: rdb, Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/heyxyz/heycache"
)

type Hooks struct {
	inner   heycache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ heycache.Hooks = (*Hooks)(nil)

func New(inner heycache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// send on a queue closed concurrently with the check above
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheHit(k string)  { h.try(func() { h.inner.CacheHit(k) }) }
func (h *Hooks) CacheMiss(k string) { h.try(func() { h.inner.CacheMiss(k) }) }
func (h *Hooks) StoreError(op, k string, err error) {
	h.try(func() { h.inner.StoreError(op, k, err) })
}
func (h *Hooks) Invalidated(kind string, ks []string) {
	cp := append([]string(nil), ks...)
	h.try(func() { h.inner.Invalidated(kind, cp) })
}
func (h *Hooks) InvalidateFailed(kind, k string, err error) {
	h.try(func() { h.inner.InvalidateFailed(kind, k, err) })
}
func (h *Hooks) RateLimited(l, id string) { h.try(func() { h.inner.RateLimited(l, id) }) }
func (h *Hooks) LimiterUnavailable(l string, err error) {
	h.try(func() { h.inner.LimiterUnavailable(l, err) })
}
