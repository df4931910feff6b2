package ristretto

import (
	"context"
	"testing"
	"time"

	pr "github.com/heyxyz/heycache/provider"
)

func TestRistrettoProvider(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if err := p.Set(ctx, "staff-picks", []byte(`["0x01"]`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	p.Wait()

	b, ok, err := p.Get(ctx, "staff-picks")
	if err != nil || !ok || string(b) != `["0x01"]` {
		t.Fatalf("Get: ok=%v err=%v b=%q", ok, err, b)
	}
	ttl, err := p.TTL(ctx, "staff-picks")
	if err != nil || ttl <= 0 || ttl > time.Hour {
		t.Fatalf("TTL = %v err=%v", ttl, err)
	}

	if err := p.Del(ctx, "staff-picks"); err != nil {
		t.Fatal(err)
	}
	p.Wait()
	if _, ok, _ := p.Get(ctx, "staff-picks"); ok {
		t.Fatalf("expected miss after Del")
	}
	if ttl, _ := p.TTL(ctx, "staff-picks"); ttl != pr.Missing {
		t.Fatalf("TTL after Del = %v, want Missing", ttl)
	}
}

func TestRistrettoInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for zero config")
	}
}
