package bigcache

import (
	"context"
	"errors"
	"testing"
	"time"

	pr "github.com/heyxyz/heycache/provider"
)

func TestBigcacheProvider(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{LifeWindow: time.Minute, HardMaxCacheSizeMB: 8})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if err := p.Set(ctx, "allowedTokens", []byte(`[]`), time.Hour); err != nil {
		t.Fatal(err)
	}
	b, ok, err := p.Get(ctx, "allowedTokens")
	if err != nil || !ok || string(b) != `[]` {
		t.Fatalf("Get: ok=%v err=%v b=%q", ok, err, b)
	}

	if err := p.Del(ctx, "allowedTokens"); err != nil {
		t.Fatal(err)
	}
	if err := p.Del(ctx, "allowedTokens"); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "allowedTokens"); ok {
		t.Fatalf("expected miss after Del")
	}

	if _, err := p.TTL(ctx, "allowedTokens"); !errors.Is(err, pr.ErrUnsupported) {
		t.Fatalf("TTL err = %v, want ErrUnsupported", err)
	}
}
