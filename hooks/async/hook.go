// Package asynchook moves hook delivery off the request path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{StoreErrorEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	svc, _ := segcache.New(ctx, segcache.Options{
//	    Segment: "accounts",
//	    Config:  cfg,
//	    Store:   store,
//	    Hooks:   hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/segcache"
)

// Hooks queues events for inner on a bounded channel. When the queue is full
// the event is dropped and counted; callers never block.
type Hooks struct {
	inner   segcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ segcache.Hooks = (*Hooks)(nil)

func New(inner segcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) StoreError(seg, op, key string, err error) {
	h.try(func() { h.inner.StoreError(seg, op, key, err) })
}
func (h *Hooks) SegmentDisabled(seg string, reason error) {
	h.try(func() { h.inner.SegmentDisabled(seg, reason) })
}
func (h *Hooks) CorruptEntry(seg, key string) { h.try(func() { h.inner.CorruptEntry(seg, key) }) }
func (h *Hooks) ProviderSetRejected(seg, key string) {
	h.try(func() { h.inner.ProviderSetRejected(seg, key) })
}
func (h *Hooks) PatternUnsupported(seg, pattern string) {
	h.try(func() { h.inner.PatternUnsupported(seg, pattern) })
}
