package segcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/segcache/config"
	"github.com/unkn0wn-root/segcache/internal/util"
	"github.com/unkn0wn-root/segcache/internal/wire"
	pr "github.com/unkn0wn-root/segcache/provider"
)

// Service is the generic engine for one segment.
// All fields are set in New and never change afterwards.
type Service struct {
	segment        string
	cfg            config.Cache
	handle         pr.Provider // nil when disabled
	enabled        bool
	disabledReason error
	ttl            time.Duration
	log            Logger
	hooks          Hooks
	computeSetCost SetCostFunc
	keyFn          KeyFunc
	now            func() time.Time
}

// New validates opts and, when the engine is a real store, opens the segment
// handle eagerly. Misconfiguration, including a segment name with reserved
// characters, is returned as an error wrapping *config.Error. A segment that is already provisioned or a store that cannot
// be reached is logged and leaves the Service disabled; New still succeeds.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Segment == "" {
		return nil, fmt.Errorf("segcache: %w", &config.Error{Key: "segment", Reason: "required"})
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("segcache: %w", err)
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("segcache: %w", &config.Error{Key: "ttl", Reason: "must not be negative"})
	}
	enabled := opts.Config.Engine.Enabled()
	if enabled && opts.Store == nil {
		return nil, fmt.Errorf("segcache: %w", &config.Error{
			Key:    "store",
			Reason: fmt.Sprintf("required for engine %q", opts.Config.Engine),
		})
	}

	s := &Service{
		segment: opts.Segment,
		cfg:     opts.Config,
		enabled: enabled,
	}
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.ttl = coalesce[time.Duration](opts.TTL, opts.Config.TTL())

	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	if opts.KeyFunc != nil {
		s.keyFn = opts.KeyFunc
	} else {
		s.keyFn = func(p Params) string { return util.ParamsKey(p) }
	}
	if opts.Now != nil {
		s.now = opts.Now
	} else {
		s.now = time.Now
	}

	if !s.enabled {
		s.disabledReason = fmt.Errorf("engine %q does not enable caching", opts.Config.Engine)
		s.log.Debug("cache disabled by engine", Fields{"segment": s.segment, "engine": string(opts.Config.Engine)})
		return s, nil
	}

	h, err := opts.Store.Open(ctx, s.segment)
	if errors.Is(err, pr.ErrInvalidName) {
		return nil, fmt.Errorf("segcache: %w", &config.Error{Key: "segment", Reason: err.Error()})
	}
	if err != nil {
		s.enabled = false
		s.disabledReason = err
		fields := Fields{"segment": s.segment, "store": opts.Store.Name(), "err": err}
		if errors.Is(err, pr.ErrSegmentProvisioned) {
			s.log.Warn("segment already provisioned; caching disabled for this segment", fields)
		} else {
			s.log.Warn("segment open failed; caching disabled for this segment", fields)
		}
		s.hooks.SegmentDisabled(s.segment, err)
		return s, nil
	}
	s.handle = h
	s.log.Info("segment opened", Fields{"segment": s.segment, "store": opts.Store.Name(), "ttl": s.ttl.String()})
	return s, nil
}

func (s *Service) Enabled() bool { return s.enabled }

// DisabledReason is nil while enabled.
func (s *Service) DisabledReason() error { return s.disabledReason }

func (s *Service) Segment() string      { return s.segment }
func (s *Service) TTL() time.Duration   { return s.ttl }
func (s *Service) Config() config.Cache { return s.cfg }

// Close releases the segment handle. The shared store stays open.
func (s *Service) Close(ctx context.Context) error {
	if s.handle == nil {
		return nil
	}
	return s.handle.Close(ctx)
}

// GetByKey returns the stored payload. Disabled caches, misses, store errors,
// corrupt frames and entries past their deadline all come back as (nil, false).
func (s *Service) GetByKey(ctx context.Context, key string) ([]byte, bool) {
	if !s.enabled {
		return nil, false
	}
	raw, ok, err := s.handle.Get(ctx, key)
	if err != nil {
		s.storeFailed(ctx, "get", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	meta, payload, err := wire.Decode(raw)
	if err != nil {
		s.dropCorrupt(ctx, key)
		return nil, false
	}
	if meta.Expired(s.now()) {
		// backends without per-entry TTL (bigcache) keep entries past their deadline
		s.dropExpired(ctx, key)
		return nil, false
	}
	return payload, true
}

// SetByKey writes value with ttl; ttl <= 0 uses the service default. The
// deadline travels in the frame, so reads honour ttl on every backend.
func (s *Service) SetByKey(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !s.enabled {
		return
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()
	framed := wire.Encode(wire.Meta{StoredAt: now, ExpiresAt: now.Add(ttl)}, value)
	ok, err := s.handle.Set(ctx, key, framed, s.computeSetCost(key, framed), ttl)
	if err != nil {
		s.storeFailed(ctx, "set", key, err)
		return
	}
	if !ok {
		s.log.Debug("set rejected by provider (pressure)", Fields{"segment": s.segment, "key": key})
		s.hooks.ProviderSetRejected(s.segment, key)
	}
}

func (s *Service) DropByKey(ctx context.Context, key string) {
	if !s.enabled {
		return
	}
	if err := s.handle.Del(ctx, key); err != nil {
		s.storeFailed(ctx, "del", key, err)
	}
}

// DropPattern deletes every key in the segment matching pattern. ok is false
// when the cache is disabled, the backend cannot delete by pattern, or the
// store failed; callers then rely on targeted deletes and TTL.
func (s *Service) DropPattern(ctx context.Context, pattern string) (removed int, ok bool) {
	if !s.enabled {
		return 0, false
	}
	n, err := s.handle.DelPattern(ctx, pattern)
	if errors.Is(err, pr.ErrPatternUnsupported) {
		s.log.Debug("pattern delete unsupported by backend", Fields{"segment": s.segment, "pattern": pattern})
		s.hooks.PatternUnsupported(s.segment, pattern)
		return 0, false
	}
	if err != nil {
		s.storeFailed(ctx, "del_pattern", pattern, err)
		return n, false
	}
	s.log.Debug("pattern dropped", Fields{"segment": s.segment, "pattern": pattern, "removed": n})
	return n, true
}

// InvalidateAll drops every key in the segment.
func (s *Service) InvalidateAll(ctx context.Context) {
	s.DropPattern(ctx, "*")
}

// GenerateKey derives a key from params with the configured KeyFunc.
func (s *Service) GenerateKey(params Params) string { return s.keyFn(params) }

func (s *Service) Get(ctx context.Context, params Params) ([]byte, bool) {
	return s.GetByKey(ctx, s.GenerateKey(params))
}

func (s *Service) Set(ctx context.Context, params Params, value []byte, ttl time.Duration) {
	s.SetByKey(ctx, s.GenerateKey(params), value, ttl)
}

func (s *Service) Drop(ctx context.Context, params Params) {
	s.DropByKey(ctx, s.GenerateKey(params))
}

func (s *Service) storeFailed(ctx context.Context, op, key string, err error) {
	if ctx.Err() != nil {
		// caller gave up; not a store fault
		s.log.Debug("store call cancelled", Fields{"segment": s.segment, "op": op, "key": key, "err": err})
		return
	}
	se := &StoreError{Segment: s.segment, Op: op, Key: key, Err: err}
	s.log.Warn("store call failed; treating as cache miss", Fields{"segment": s.segment, "op": op, "key": key, "err": se})
	s.hooks.StoreError(s.segment, op, key, err)
}

// dropCorrupt self-heals an entry that failed framing or decoding.
func (s *Service) dropCorrupt(ctx context.Context, key string) {
	s.log.Warn("corrupt entry dropped", Fields{"segment": s.segment, "key": key})
	s.hooks.CorruptEntry(s.segment, key)
	if err := s.handle.Del(ctx, key); err != nil {
		s.storeFailed(ctx, "del", key, err)
	}
}

func (s *Service) dropExpired(ctx context.Context, key string) {
	s.log.Debug("expired entry dropped", Fields{"segment": s.segment, "key": key})
	if err := s.handle.Del(ctx, key); err != nil {
		s.storeFailed(ctx, "del", key, err)
	}
}

// Logger returns the logger in use so specializations log alongside the engine.
func (s *Service) Logger() Logger { return s.log }
