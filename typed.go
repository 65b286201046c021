package segcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/segcache/codec"
)

// Typed is a codec view over a Service. Several views with different value
// types can share one segment; they only differ in how bytes are decoded.
type Typed[V any] struct {
	svc   *Service
	codec c.Codec[V]
}

func NewTyped[V any](svc *Service, codec c.Codec[V]) *Typed[V] {
	return &Typed[V]{svc: svc, codec: codec}
}

func (t *Typed[V]) Service() *Service { return t.svc }
func (t *Typed[V]) Enabled() bool     { return t.svc.Enabled() }

// GetByKey decodes a hit. An undecodable entry is dropped and reported as a miss.
func (t *Typed[V]) GetByKey(ctx context.Context, key string) (V, bool) {
	var zero V
	b, ok := t.svc.GetByKey(ctx, key)
	if !ok {
		return zero, false
	}
	v, err := t.codec.Decode(b)
	if err != nil {
		t.svc.dropCorrupt(ctx, key)
		return zero, false
	}
	return v, true
}

func (t *Typed[V]) SetByKey(ctx context.Context, key string, value V, ttl time.Duration) {
	if !t.svc.Enabled() {
		return
	}
	b, err := t.codec.Encode(value)
	if err != nil {
		t.svc.log.Error("encode failed; entry not cached", Fields{"segment": t.svc.segment, "key": key, "err": err})
		return
	}
	t.svc.SetByKey(ctx, key, b, ttl)
}

func (t *Typed[V]) DropByKey(ctx context.Context, key string) { t.svc.DropByKey(ctx, key) }
func (t *Typed[V]) InvalidateAll(ctx context.Context)         { t.svc.InvalidateAll(ctx) }

func (t *Typed[V]) Get(ctx context.Context, params Params) (V, bool) {
	return t.GetByKey(ctx, t.svc.GenerateKey(params))
}

func (t *Typed[V]) Set(ctx context.Context, params Params, value V, ttl time.Duration) {
	t.SetByKey(ctx, t.svc.GenerateKey(params), value, ttl)
}

func (t *Typed[V]) Drop(ctx context.Context, params Params) {
	t.DropByKey(ctx, t.svc.GenerateKey(params))
}
