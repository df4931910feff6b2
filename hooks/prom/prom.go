// Package promhooks counts cache and limiter events in Prometheus.
// Keys are labelled by namespace only (see keys.Namespace).
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/heyxyz/heycache"
	"github.com/heyxyz/heycache/keys"
)

type Hooks struct {
	lookups          *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	invalidatedKeys  *prometheus.CounterVec
	invalidateFailed *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	limiterDown      *prometheus.CounterVec
}

var _ heycache.Hooks = (*Hooks)(nil)

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Hooks{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "heycache_lookups_total",
			Help: "Cache reads by key namespace and result",
		}, []string{"namespace", "result"}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "heycache_store_errors_total",
			Help: "Failed store calls by operation",
		}, []string{"op", "namespace"}),
		invalidatedKeys: f.NewCounterVec(prometheus.CounterOpts{
			Name: "heycache_invalidated_keys_total",
			Help: "Keys deleted by invalidation, by mutation kind",
		}, []string{"kind"}),
		invalidateFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "heycache_invalidate_failures_total",
			Help: "Invalidation deletes that failed, by mutation kind",
		}, []string{"kind", "namespace"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "heycache_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		}, []string{"limiter"}),
		limiterDown: f.NewCounterVec(prometheus.CounterOpts{
			Name: "heycache_limiter_unavailable_total",
			Help: "Rate limiter decisions made without the counter store",
		}, []string{"limiter"}),
	}
}

func (h *Hooks) CacheHit(k string)  { h.lookups.WithLabelValues(keys.Namespace(k), "hit").Inc() }
func (h *Hooks) CacheMiss(k string) { h.lookups.WithLabelValues(keys.Namespace(k), "miss").Inc() }

func (h *Hooks) StoreError(op, k string, _ error) {
	h.storeErrors.WithLabelValues(op, keys.Namespace(k)).Inc()
}

func (h *Hooks) Invalidated(kind string, ks []string) {
	h.invalidatedKeys.WithLabelValues(kind).Add(float64(len(ks)))
}

func (h *Hooks) InvalidateFailed(kind, k string, _ error) {
	h.invalidateFailed.WithLabelValues(kind, keys.Namespace(k)).Inc()
}

func (h *Hooks) RateLimited(limiter, _ string) { h.rateLimited.WithLabelValues(limiter).Inc() }

func (h *Hooks) LimiterUnavailable(limiter string, _ error) {
	h.limiterDown.WithLabelValues(limiter).Inc()
}
