package ristretto

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/segcache/provider"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for zero config")
	}
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	if ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}

	b, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get: ok=%v err=%v val=%q", ok, err, b)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestDelPatternUnsupported(t *testing.T) {
	p := newTestProvider(t)
	if _, err := p.DelPattern(context.Background(), "*"); !errors.Is(err, pr.ErrPatternUnsupported) {
		t.Fatalf("expected ErrPatternUnsupported, got %v", err)
	}
}

func TestSetVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("entity:%d", i)
		if ok, err := p.Set(ctx, k, []byte(k), 0, time.Minute); err != nil || !ok {
			t.Fatalf("Set %s: ok=%v err=%v", k, ok, err)
		}
		if b, ok, _ := p.Get(ctx, k); !ok || string(b) != k {
			t.Fatalf("Get %s right after Set: ok=%v val=%q", k, ok, b)
		}
	}
}
