package segcache

import (
	"fmt"

	pr "github.com/unkn0wn-root/segcache/provider"
)

// ErrSegmentProvisioned is re-exported so callers need not import provider.
var ErrSegmentProvisioned = pr.ErrSegmentProvisioned

// StoreError describes a swallowed store failure. It never reaches callers of
// the cache API; it is what loggers and hooks see.
type StoreError struct {
	Segment string
	Op      string
	Key     string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("segcache: %s on segment %q: %v", e.Op, e.Segment, e.Err)
	}
	return fmt.Sprintf("segcache: %s %q on segment %q: %v", e.Op, e.Key, e.Segment, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
