package segcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/segcache/config"
	pr "github.com/unkn0wn-root/segcache/provider"
)

// SetCostFunc weighs an entry for cost-aware providers (Ristretto).
type SetCostFunc func(key string, raw []byte) int64

// Params is the input of GenerateKey. Nil values are ignored.
type Params map[string]any

// KeyFunc derives a storage key from Params.
type KeyFunc func(Params) string

// KeyValueCache is the by-key capability shared by Service (V = []byte) and
// Typed[V]. Specializations hold one by composition.
type KeyValueCache[V any] interface {
	Enabled() bool
	GetByKey(ctx context.Context, key string) (V, bool)
	SetByKey(ctx context.Context, key string, value V, ttl time.Duration)
	DropByKey(ctx context.Context, key string)
	InvalidateAll(ctx context.Context)
}

// Options configure a Service. Segment and Config are required; Store is
// required when Config.Engine is a real store.
type Options struct {
	Segment string
	Config  config.Cache
	Store   pr.Store

	Logger         Logger        // nil => NopLogger
	Hooks          Hooks         // nil => NopHooks
	TTL            time.Duration // per-instance override; 0 => Config.TTL()
	ComputeSetCost SetCostFunc   // nil => framed size in bytes
	KeyFunc        KeyFunc       // nil => sorted "k=v&..." serialization
	Now            func() time.Time
}

var (
	_ KeyValueCache[[]byte] = (*Service)(nil)
	_ KeyValueCache[string] = (*Typed[string])(nil)
)
