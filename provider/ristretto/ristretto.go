// Package ristretto adapts dgraph-io/ristretto as an in-process Provider.
// Entries are local to one process, so invalidation does not reach other
// replicas; use it for single-instance deployments and development.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/heyxyz/heycache/provider"
)

type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64 // bytes; each entry costs len(value)
	BufferItems int64
	Metrics     bool
}

// DefaultConfig sizes the cache for roughly 100k entries and 256MB of payload.
func DefaultConfig() Config {
	return Config{NumCounters: 1_000_000, MaxCost: 256 << 20, BufferItems: 64}
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set is applied asynchronously by ristretto; a subsequent Get may miss until
// the write buffer drains. Call Wait to force it.
func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if !p.c.SetWithTTL(key, value, int64(len(value)), ttl) {
		return pr.ErrRejected
	}
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) TTL(_ context.Context, key string) (time.Duration, error) {
	d, ok := p.c.GetTTL(key)
	if !ok {
		return pr.Missing, nil
	}
	if d == 0 {
		return pr.NoExpiry, nil
	}
	return d.Truncate(time.Second), nil
}

// Wait blocks until buffered writes are applied.
func (p *Provider) Wait() { p.c.Wait() }

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters when Config.Metrics is set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
