package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/heyxyz/heycache"
)

type counting struct {
	heycache.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (c *counting) record(s string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.events = append(c.events, s)
	c.mu.Unlock()
}

func (c *counting) CacheHit(k string)                    { c.record("hit:" + k) }
func (c *counting) StoreError(op, k string, _ error)     { c.record(op + ":" + k) }
func (c *counting) Invalidated(kind string, _ []string)  { c.record(kind) }
func (c *counting) LimiterUnavailable(l string, _ error) { c.record("down:" + l) }

func TestDeliversAndDrains(t *testing.T) {
	inner := &counting{}
	h := New(inner, 2, 16)
	h.CacheHit("poll:1")
	h.StoreError("set", "poll:1", errors.New("x"))
	h.Invalidated("feature_toggled", []string{"profile:1"})
	h.LimiterUnavailable("impressions", errors.New("x"))
	h.Close()

	if len(inner.events) != 4 {
		t.Fatalf("events = %v", inner.events)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped = %d", h.Dropped())
	}

	// after Close events are dropped, not panicking
	h.CacheHit("late")
	if h.Dropped() != 1 {
		t.Fatalf("dropped after close = %d", h.Dropped())
	}
}

func TestDropsOnOverflow(t *testing.T) {
	inner := &counting{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one in the worker (blocked), one queued, the rest overflow
	for i := 0; i < 10; i++ {
		h.CacheHit("k")
	}
	if h.Dropped() < 8 {
		t.Fatalf("dropped = %d, want >= 8", h.Dropped())
	}
	close(inner.block)
	h.Close()
}
