package heycache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache and limiter call them on request paths.
type Hooks interface {
	// A read found a value.
	CacheHit(key string)
	// A read found nothing, or the store failed and the read degraded.
	CacheMiss(key string)

	// A store call failed. op ∈ {"get", "set", "del", "ttl"}
	StoreError(op, key string, err error)

	// An invalidation deleted keys for a mutation kind.
	Invalidated(kind string, keys []string)
	// One delete of an invalidation failed; the key may serve stale data until its TTL.
	InvalidateFailed(kind, key string, err error)

	// A request was rejected by the named limiter.
	RateLimited(limiter, identity string)
	// The counter store failed; the limiter applied its failure policy.
	LimiterUnavailable(limiter string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(string)                        {}
func (NopHooks) CacheMiss(string)                       {}
func (NopHooks) StoreError(string, string, error)       {}
func (NopHooks) Invalidated(string, []string)           {}
func (NopHooks) InvalidateFailed(string, string, error) {}
func (NopHooks) RateLimited(string, string)             {}
func (NopHooks) LimiterUnavailable(string, error)       {}

// MultiHooks fans every event out to each member in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) CacheHit(k string) {
	for _, h := range m {
		h.CacheHit(k)
	}
}

func (m MultiHooks) CacheMiss(k string) {
	for _, h := range m {
		h.CacheMiss(k)
	}
}

func (m MultiHooks) StoreError(op, k string, err error) {
	for _, h := range m {
		h.StoreError(op, k, err)
	}
}

func (m MultiHooks) Invalidated(kind string, keys []string) {
	for _, h := range m {
		h.Invalidated(kind, keys)
	}
}

func (m MultiHooks) InvalidateFailed(kind, k string, err error) {
	for _, h := range m {
		h.InvalidateFailed(kind, k, err)
	}
}

func (m MultiHooks) RateLimited(l, id string) {
	for _, h := range m {
		h.RateLimited(l, id)
	}
}

func (m MultiHooks) LimiterUnavailable(l string, err error) {
	for _, h := range m {
		h.LimiterUnavailable(l, err)
	}
}
