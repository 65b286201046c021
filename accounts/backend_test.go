package accounts

import (
	"context"
	"fmt"
	"testing"

	"github.com/unkn0wn-root/segcache"
	"github.com/unkn0wn-root/segcache/backend"
	"github.com/unkn0wn-root/segcache/collection"
	"github.com/unkn0wn-root/segcache/config"
)

func openEngineCache(t *testing.T, engine config.Engine) *Cache {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	cfg.Engine = engine
	store, err := backend.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("backend.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(ctx) })
	svc, err := segcache.New(ctx, segcache.Options{Segment: Segment, Config: cfg, Store: store})
	if err != nil {
		t.Fatalf("segcache.New: %v", err)
	}
	if !svc.Enabled() {
		t.Fatalf("%s: expected enabled service", engine)
	}
	cache, err := NewCache(svc, CacheOptions{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return cache
}

func TestInProcessEnginesRoundTrip(t *testing.T) {
	for _, engine := range []config.Engine{config.EngineRistretto, config.EngineBigCache} {
		t.Run(string(engine), func(t *testing.T) {
			ctx := context.Background()
			cache := openEngineCache(t, engine)

			misses := 0
			for id := int64(1); id <= 50; id++ {
				a := Account{ID: id, Name: fmt.Sprint("acc", id), Status: StatusPending, CreatedAt: created}
				cache.SetEntity(ctx, id, a)
				got, ok := cache.GetEntity(ctx, id)
				if !ok {
					misses++
					continue
				}
				if !sameAccount(got, a) {
					t.Fatalf("id %d: got %+v want %+v", id, got, a)
				}
			}
			if misses != 0 {
				t.Fatalf("entity round-trip misses: %d/50", misses)
			}

			q := collection.ListQuery{Status: string(StatusPending)}
			cache.SetListMetadata(ctx, q, []int64{1, 2, 3}, collection.Pagination{Total: 3, Page: 1})
			md, ok := cache.GetListMetadata(ctx, q)
			if !ok {
				t.Fatalf("list metadata missed right after set")
			}
			if len(md.EntityIDs) != 3 || md.Pagination.Total != 3 || md.FetchedAt == 0 {
				t.Fatalf("list metadata = %+v", md)
			}
		})
	}
}
