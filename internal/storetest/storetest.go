// Package storetest provides an in-memory provider.Provider for tests, with
// call counting, TTL capture and failure injection.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/segcache/internal/util"
	pr "github.com/unkn0wn-root/segcache/provider"
)

var ErrDown = errors.New("storetest: store down")

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Mem struct {
	mu    sync.Mutex
	m     map[string]entry
	ttls  map[string]time.Duration
	costs map[string]int64
	calls map[string]int

	// Fail, when set, is returned by every data operation.
	Fail error
	// NoPattern makes DelPattern report ErrPatternUnsupported.
	NoPattern bool
	// Reject makes Set return ok=false without storing.
	Reject bool
}

var _ pr.Provider = (*Mem)(nil)

func New() *Mem {
	return &Mem{
		m:     make(map[string]entry),
		ttls:  make(map[string]time.Duration),
		costs: make(map[string]int64),
		calls: make(map[string]int),
	}
}

func (p *Mem) count(op string) { p.calls[op]++ }

func (p *Mem) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("get")
	if p.Fail != nil {
		return nil, false, p.Fail
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *Mem) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("set")
	if p.Fail != nil {
		return false, p.Fail
	}
	if p.Reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = entry{v: append([]byte(nil), value...), exp: exp}
	p.ttls[key] = ttl
	p.costs[key] = cost
	return true, nil
}

func (p *Mem) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("del")
	if p.Fail != nil {
		return p.Fail
	}
	delete(p.m, key)
	return nil
}

func (p *Mem) DelPattern(_ context.Context, pattern string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("del_pattern")
	if p.Fail != nil {
		return 0, p.Fail
	}
	if p.NoPattern {
		return 0, pr.ErrPatternUnsupported
	}
	n := 0
	for k := range p.m {
		if util.Match(pattern, k) {
			delete(p.m, k)
			n++
		}
	}
	return n, nil
}

func (p *Mem) Close(context.Context) error { return nil }

// Put writes raw bytes, bypassing counters and failure injection.
func (p *Mem) Put(key string, raw []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = entry{v: raw}
}

func (p *Mem) Has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

// Keys returns the stored keys, sorted.
func (p *Mem) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.m))
	for k := range p.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TTL returns the ttl passed to the last Set of key.
func (p *Mem) TTL(key string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ttls[key]
}

// Cost returns the cost passed to the last Set of key.
func (p *Mem) Cost(key string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.costs[key]
}

// Calls returns how many times op ran; op "" sums all ops.
func (p *Mem) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if op != "" {
		return p.calls[op]
	}
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// Store wraps a Mem in a SegmentStore named name.
func Store(name string, base *Mem) *pr.SegmentStore {
	s, err := pr.NewSegmentStore(pr.SegmentStoreConfig{Name: name, Base: base})
	if err != nil {
		panic(err)
	}
	return s
}

// CountingStore records Open calls and delegates to Inner.
type CountingStore struct {
	Inner pr.Store
	mu    sync.Mutex
	opens int
}

func (s *CountingStore) Name() string { return s.Inner.Name() }

func (s *CountingStore) Open(ctx context.Context, segment string) (pr.Provider, error) {
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	return s.Inner.Open(ctx, segment)
}

func (s *CountingStore) Close(ctx context.Context) error { return s.Inner.Close(ctx) }

func (s *CountingStore) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}
