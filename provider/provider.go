// Package provider defines the storage abstraction used by segcache.
//
// A Provider is a flat byte store with TTLs and glob deletes. A Store hands
// out segment-scoped Providers: every key written through a segment handle is
// prefixed with "<store>:<segment>:" so collections never see each other's keys.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSegmentProvisioned is returned by Store.Open when the segment already
	// has a live handle (e.g. after a hot restart). Callers treat it as non-fatal.
	ErrSegmentProvisioned = errors.New("provider: segment already provisioned")

	// ErrPatternUnsupported is returned by DelPattern on backends that cannot
	// enumerate keys.
	ErrPatternUnsupported = errors.New("provider: pattern delete not supported")

	ErrClosed = errors.New("provider: store closed")
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// DelPattern removes every key matching a glob pattern ('*', '?') and
	// returns how many were removed. Backends that cannot enumerate keys
	// return ErrPatternUnsupported.
	DelPattern(ctx context.Context, pattern string) (int, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Store opens segment-scoped handles.
type Store interface {
	// Name identifies the store; it is the outermost key prefix.
	Name() string

	// Open returns the handle for segment. Opening a segment that is already
	// open returns ErrSegmentProvisioned unless the store is idempotent.
	Open(ctx context.Context, segment string) (Provider, error)

	Close(ctx context.Context) error
}
