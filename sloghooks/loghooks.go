// Package sloghooks logs cache and limiter events to a *slog.Logger.
// Keys are redacted by default because they carry profile ids.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/heyxyz/heycache"
	"github.com/heyxyz/heycache/keys"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitMissEvery     uint64
	RateLimitedEvery uint64
	// Optional key redactor. Defaults to namespace + SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitMissCtr atomic.Uint64
	limitedCtr atomic.Uint64
}

var _ heycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return keys.Namespace(k) + "#" + keys.Digest(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(k string) {
	if h.l == nil || !sample(h.opts.HitMissEvery, &h.hitMissCtr) {
		return
	}
	h.l.Debug("heycache.hit", "key", h.redact(k))
}

func (h *Hooks) CacheMiss(k string) {
	if h.l == nil || !sample(h.opts.HitMissEvery, &h.hitMissCtr) {
		return
	}
	h.l.Debug("heycache.miss", "key", h.redact(k))
}

func (h *Hooks) StoreError(op, k string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("heycache.store_error",
		"op", op,
		"key", h.redact(k),
		"err", err)
}

func (h *Hooks) Invalidated(kind string, ks []string) {
	if h.l == nil {
		return
	}
	red := make([]string, len(ks))
	for i, k := range ks {
		red[i] = h.redact(k)
	}
	h.l.Info("heycache.invalidated",
		"kind", kind,
		"keys", red)
}

func (h *Hooks) InvalidateFailed(kind, k string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("heycache.invalidate_failed",
		"kind", kind,
		"key", h.redact(k),
		"err", err)
}

func (h *Hooks) RateLimited(limiter, identity string) {
	if h.l == nil || !sample(h.opts.RateLimitedEvery, &h.limitedCtr) {
		return
	}
	h.l.Info("heycache.rate_limited",
		"limiter", limiter,
		"identity", keys.Digest(identity))
}

func (h *Hooks) LimiterUnavailable(limiter string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("heycache.limiter_unavailable",
		"limiter", limiter,
		"err", err)
}
