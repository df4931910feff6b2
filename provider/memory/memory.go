// Package memory is an in-process Provider and Counter. It stands in for Redis in
// tests and single-process development; state is not shared across replicas.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	pr "github.com/heyxyz/heycache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// Memory keeps entries in a map guarded by a mutex. Expired entries are dropped
// lazily on access.
type Memory struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

var (
	_ pr.Provider = (*Memory)(nil)
	_ pr.Counter  = (*Memory)(nil)
)

// Option configures a Memory store.
type Option func(*Memory)

// WithClock overrides the time source. Tests use it to step over windows and TTLs.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

func New(opts ...Option) *Memory {
	m := &Memory{m: make(map[string]entry), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// live returns the entry for key, deleting it if expired. Caller holds mu.
func (p *Memory) live(key string) (entry, bool) {
	e, ok := p.m[key]
	if !ok {
		return entry{}, false
	}
	if !e.exp.IsZero() && !p.now().Before(e.exp) {
		delete(p.m, key)
		return entry{}, false
	}
	return e, true
}

func (p *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.live(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(e.v))
	copy(out, e.v)
	return out, true, nil
}

func (p *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)

	p.mu.Lock()
	p.m[key] = entry{v: v, exp: exp}
	p.mu.Unlock()
	return nil
}

func (p *Memory) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.live(key)
	if !ok {
		return pr.Missing, nil
	}
	if e.exp.IsZero() {
		return pr.NoExpiry, nil
	}
	// Redis reports whole seconds; match it so callers see the same numbers.
	return e.exp.Sub(p.now()).Truncate(time.Second), nil
}

func (p *Memory) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	e, ok := p.live(key)
	var n int64
	if ok {
		parsed, err := strconv.ParseInt(string(e.v), 10, 64)
		if err != nil {
			return 0, 0, err
		}
		n = parsed
	}
	n++
	if !ok || e.exp.IsZero() {
		e.exp = now.Add(window)
	}
	e.v = []byte(strconv.FormatInt(n, 10))
	p.m[key] = e
	return n, e.exp.Sub(now), nil
}

// Len reports the number of live entries.
func (p *Memory) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k := range p.m {
		if _, ok := p.live(k); ok {
			n++
		}
	}
	return n
}

func (p *Memory) Close(_ context.Context) error { return nil }
