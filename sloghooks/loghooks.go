// Package sloghooks reports segcache hook events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/segcache"
)

type Options struct {
	// Sampling to avoid floods during an outage; 0/1 = log all.
	StoreErrorEvery uint64
	RejectEvery     uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	storeErrCtr atomic.Uint64
	rejectCtr   atomic.Uint64
}

var _ segcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 1
}

func (h *Hooks) StoreError(segment, op, key string, err error) {
	if h.l == nil || !sample(h.opts.StoreErrorEvery, &h.storeErrCtr) {
		return
	}
	h.l.Warn("segcache.store_error",
		"segment", segment,
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) SegmentDisabled(segment string, reason error) {
	if h.l == nil {
		return
	}
	h.l.Warn("segcache.segment_disabled",
		"segment", segment,
		"reason", reason)
}

func (h *Hooks) CorruptEntry(segment, key string) {
	if h.l == nil {
		return
	}
	h.l.Info("segcache.corrupt_entry",
		"segment", segment,
		"key", h.redact(key))
}

func (h *Hooks) ProviderSetRejected(segment, key string) {
	if h.l == nil || !sample(h.opts.RejectEvery, &h.rejectCtr) {
		return
	}
	h.l.Debug("segcache.provider_set_rejected",
		"segment", segment,
		"key", h.redact(key))
}

// Patterns are logged verbatim; they carry no entity data.
func (h *Hooks) PatternUnsupported(segment, pattern string) {
	if h.l == nil {
		return
	}
	h.l.Debug("segcache.pattern_unsupported",
		"segment", segment,
		"pattern", pattern)
}
