// Package backend builds the segment store for the configured engine.
package backend

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/segcache/config"
	pr "github.com/unkn0wn-root/segcache/provider"
	bcp "github.com/unkn0wn-root/segcache/provider/bigcache"
	rdp "github.com/unkn0wn-root/segcache/provider/redis"
	rtp "github.com/unkn0wn-root/segcache/provider/ristretto"
)

// Open returns the store for cfg.Engine, or nil for engines that do not
// enable caching. The returned store owns its base provider (and redis
// client); Close it on shutdown.
func Open(ctx context.Context, cfg config.Cache) (pr.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	if !cfg.Engine.Enabled() {
		return nil, nil
	}
	base, err := openBase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: %w", cfg.Engine, err)
	}
	s, err := pr.NewSegmentStore(pr.SegmentStoreConfig{
		Name:       cfg.StoreName,
		Base:       base,
		Idempotent: cfg.IdempotentOpen,
	})
	if err != nil {
		_ = base.Close(ctx)
		return nil, fmt.Errorf("backend: %w", err)
	}
	return s, nil
}

func openBase(_ context.Context, cfg config.Cache) (pr.Provider, error) {
	switch cfg.Engine {
	case config.EngineRedis:
		// go-redis dials lazily; an unreachable server surfaces as
		// fail-soft store errors, not here.
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return rdp.New(rdp.Config{Client: rdb, CloseClient: true, ScanCount: cfg.Redis.ScanCount})
	case config.EngineRistretto:
		return rtp.New(rtp.Config{
			NumCounters: cfg.Ristretto.NumCounters,
			MaxCost:     cfg.Ristretto.MaxCost,
			BufferItems: cfg.Ristretto.BufferItems,
		})
	case config.EngineBigCache:
		return bcp.New(bcp.Config{
			LifeWindow:         time.Duration(cfg.BigCache.LifeWindowMs) * time.Millisecond,
			MaxEntriesInWindow: cfg.BigCache.MaxEntriesInWindow,
			MaxEntrySize:       cfg.BigCache.MaxEntrySize,
			HardMaxCacheSizeMB: cfg.BigCache.HardMaxCacheSizeMB,
		})
	default:
		return nil, fmt.Errorf("no store for engine %q", cfg.Engine)
	}
}
