// Package ratelimit is a fixed-window request limiter backed by an atomic
// counter in the shared store.
//
// Per identity a counter moves UNSEEN -> COUNTING (1..limit) -> BLOCKED
// (> limit) and back to UNSEEN when its window expires. The window starts at
// the first request and is not extended by later ones.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heyxyz/heycache"
	pr "github.com/heyxyz/heycache/provider"
)

// ErrUnavailable wraps counter store failures surfaced under FailClosed.
var ErrUnavailable = errors.New("ratelimit: counter store unavailable")

// Config is a per-route limit: at most Requests within Within.
type Config struct {
	Requests int
	Within   time.Duration
}

func (c Config) Validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("ratelimit: requests must be > 0, got %d", c.Requests)
	}
	if c.Within <= 0 {
		return fmt.Errorf("ratelimit: within must be > 0, got %s", c.Within)
	}
	return nil
}

// Policy decides what happens when the counter store cannot be reached.
type Policy int

const (
	// FailOpen admits every request while the store is down.
	FailOpen Policy = iota
	// FailClosed rejects every request while the store is down.
	FailClosed
)

func (p Policy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

type Options struct {
	// Counter stores the per-identity counts. nil disables the limiter.
	Counter pr.Counter

	Logger heycache.Logger // if nil, NopLogger is used
	Hooks  heycache.Hooks  // if nil, NopHooks is used
	Policy Policy          // default FailOpen

	// Prefix of counter keys. "" => "ratelimit".
	Prefix string
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

type Limiter struct {
	name    string
	cfg     Config
	counter pr.Counter
	log     heycache.Logger
	hooks   heycache.Hooks
	policy  Policy
	prefix  string
}

// New builds a limiter. name is the route namespace, so two routes never
// share counters.
func New(name string, cfg Config, opts Options) (*Limiter, error) {
	if name == "" {
		return nil, errors.New("ratelimit: name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		name:    name,
		cfg:     cfg,
		counter: opts.Counter,
		policy:  opts.Policy,
	}
	l.log = heycache.Coalesce[heycache.Logger](opts.Logger, heycache.NopLogger{})
	l.hooks = heycache.Coalesce[heycache.Hooks](opts.Hooks, heycache.NopHooks{})
	l.prefix = heycache.Coalesce(opts.Prefix, "ratelimit")

	if l.counter == nil {
		l.log.Warn("rate limiter disabled: no counter store", heycache.Fields{"limiter": name})
	}
	return l, nil
}

func (l *Limiter) Name() string   { return l.name }
func (l *Limiter) Config() Config { return l.cfg }
func (l *Limiter) Enabled() bool  { return l.counter != nil }

func (l *Limiter) key(identity string) string {
	return l.prefix + ":" + l.name + ":" + identity
}

// Allow counts one request for identity. The error is non-nil only when the
// store failed; the Decision then reflects the failure policy.
func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	d := Decision{Allowed: true, Limit: l.cfg.Requests, Remaining: l.cfg.Requests}
	if l.counter == nil {
		return d, nil
	}

	n, ttl, err := l.counter.Incr(ctx, l.key(identity), l.cfg.Within)
	if err != nil {
		l.hooks.LimiterUnavailable(l.name, err)
		l.log.Warn("rate limiter store unavailable", heycache.Fields{
			"limiter": l.name, "policy": l.policy.String(), "err": err,
		})
		d.Allowed = l.policy == FailOpen
		return d, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	d.Count = n
	d.ResetAfter = ttl
	if d.ResetAfter < 0 {
		d.ResetAfter = l.cfg.Within
	}
	d.Remaining = max(l.cfg.Requests-int(n), 0)
	if n > int64(l.cfg.Requests) {
		d.Allowed = false
		l.hooks.RateLimited(l.name, identity)
		l.log.Debug("rate limited", heycache.Fields{"limiter": l.name, "identity": identity, "count": n})
	}
	return d, nil
}
