package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	pr "github.com/heyxyz/heycache/provider"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSetGetDelTTL(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := New(WithClock(clk.Now))

	if err := m.Set(ctx, "poll:1", []byte(`{"id":"1"}`), 10*time.Second); err != nil {
		t.Fatal(err)
	}
	b, ok, err := m.Get(ctx, "poll:1")
	if err != nil || !ok || string(b) != `{"id":"1"}` {
		t.Fatalf("Get: ok=%v err=%v b=%q", ok, err, b)
	}
	if ttl, _ := m.TTL(ctx, "poll:1"); ttl != 10*time.Second {
		t.Fatalf("TTL = %v, want 10s", ttl)
	}

	if err := m.Set(ctx, "forever", []byte("x"), 0); err != nil {
		t.Fatal(err)
	}
	if ttl, _ := m.TTL(ctx, "forever"); ttl != pr.NoExpiry {
		t.Fatalf("TTL(no expiry) = %v, want %v", ttl, pr.NoExpiry)
	}

	if err := m.Del(ctx, "poll:1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Del(ctx, "poll:1"); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
	if ttl, _ := m.TTL(ctx, "poll:1"); ttl != pr.Missing {
		t.Fatalf("TTL after Del = %v, want %v", ttl, pr.Missing)
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := New(WithClock(clk.Now))

	_ = m.Set(ctx, "k", []byte("v"), time.Second)
	clk.Advance(999 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatalf("entry expired early")
	}
	clk.Advance(time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("entry should have expired")
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry still counted")
	}
}

func TestIncrWindow(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := New(WithClock(clk.Now))

	for i := int64(1); i <= 3; i++ {
		n, ttl, err := m.Incr(ctx, "rl", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if n != i {
			t.Fatalf("count = %d, want %d", n, i)
		}
		if ttl <= 0 || ttl > time.Second {
			t.Fatalf("ttl = %v out of window", ttl)
		}
	}

	// later increments must not extend the window
	clk.Advance(600 * time.Millisecond)
	if _, ttl, _ := m.Incr(ctx, "rl", time.Second); ttl != 400*time.Millisecond {
		t.Fatalf("window was extended: ttl=%v", ttl)
	}

	clk.Advance(400 * time.Millisecond)
	if n, _, _ := m.Incr(ctx, "rl", time.Second); n != 1 {
		t.Fatalf("counter should reset after window, got %d", n)
	}
}

func TestIncrConcurrent(t *testing.T) {
	ctx := context.Background()
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, _, err := m.Incr(ctx, "c", time.Minute); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	n, _, _ := m.Incr(ctx, "c", time.Minute)
	if n != 401 {
		t.Fatalf("count = %d, want 401", n)
	}
}
