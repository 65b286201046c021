package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrInvalidName is returned for store or segment names that are empty or
// contain the key separator ':' or a glob metacharacter. Either would let one
// segment's wildcard deletes reach into another's keys.
var ErrInvalidName = errors.New("provider: invalid store or segment name")

const reservedChars = ":*?[]\\"

func checkName(kind, name string) error {
	if name == "" || strings.ContainsAny(name, reservedChars) {
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}
	return nil
}

// SegmentStore multiplexes one base Provider into named segments.
type SegmentStore struct {
	name       string
	base       Provider
	idempotent bool

	mu     sync.Mutex
	open   map[string]*segment
	closed bool
}

var _ Store = (*SegmentStore)(nil)

type SegmentStoreConfig struct {
	Name string
	Base Provider
	// Idempotent makes a second Open of the same segment return the existing
	// handle instead of ErrSegmentProvisioned.
	Idempotent bool
}

func NewSegmentStore(cfg SegmentStoreConfig) (*SegmentStore, error) {
	if cfg.Base == nil {
		return nil, errors.New("provider: base provider is required")
	}
	if err := checkName("store", cfg.Name); err != nil {
		return nil, err
	}
	return &SegmentStore{
		name:       cfg.Name,
		base:       cfg.Base,
		idempotent: cfg.Idempotent,
		open:       make(map[string]*segment),
	}, nil
}

func (s *SegmentStore) Name() string { return s.name }

func (s *SegmentStore) Open(_ context.Context, name string) (Provider, error) {
	if err := checkName("segment", name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if seg, ok := s.open[name]; ok {
		if s.idempotent {
			return seg, nil
		}
		return nil, ErrSegmentProvisioned
	}
	seg := &segment{owner: s, name: name, prefix: s.name + ":" + name + ":"}
	s.open[name] = seg
	return seg, nil
}

// Close closes the base provider. Segment handles become unusable.
func (s *SegmentStore) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.open = nil
	s.mu.Unlock()
	return s.base.Close(ctx)
}

func (s *SegmentStore) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open != nil {
		delete(s.open, name)
	}
}

// segment prefixes keys; it never closes the shared base.
type segment struct {
	owner  *SegmentStore
	name   string
	prefix string
}

func (g *segment) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return g.owner.base.Get(ctx, g.prefix+key)
}

func (g *segment) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	return g.owner.base.Set(ctx, g.prefix+key, value, cost, ttl)
}

func (g *segment) Del(ctx context.Context, key string) error {
	return g.owner.base.Del(ctx, g.prefix+key)
}

func (g *segment) DelPattern(ctx context.Context, pattern string) (int, error) {
	return g.owner.base.DelPattern(ctx, g.prefix+pattern)
}

// Close releases the segment so it can be provisioned again.
func (g *segment) Close(context.Context) error {
	g.owner.release(g.name)
	return nil
}
