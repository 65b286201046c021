package segcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; wrap slow sinks with
// hooks/async.
type Hooks interface {
	// A store call failed and was swallowed.
	// op ∈ {"get", "set", "del", "del_pattern"}
	StoreError(segment, op, key string, err error)

	// The segment could not be opened; caching is off for the process lifetime.
	SegmentDisabled(segment string, reason error)

	// A stored entry failed framing or decoding and was dropped on read.
	CorruptEntry(segment, key string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(segment, key string)

	// The backend cannot delete by pattern; only targeted deletes and TTL apply.
	PatternUnsupported(segment, pattern string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StoreError(string, string, string, error) {}
func (NopHooks) SegmentDisabled(string, error)            {}
func (NopHooks) CorruptEntry(string, string)              {}
func (NopHooks) ProviderSetRejected(string, string)       {}
func (NopHooks) PatternUnsupported(string, string)        {}
