// Package segcache implements a fail-soft, segment-scoped cache-aside engine.
//
// A Service owns one segment of a shared store (a key namespace such as
// "accounts"), the default TTL, and an enabled flag fixed at construction
// from the configured engine. Every store-facing call is fail-soft: a store
// error is logged at warn and becomes a miss (reads) or a no-op (writes), so
// the cache can make a request slower but never make it fail.
//
// Components:
//   - provider.Store: opens segment-scoped byte stores (Redis, Ristretto, BigCache).
//   - Service: byte-level engine (GetByKey/SetByKey/DropByKey/InvalidateAll).
//   - Typed[V]: codec view over a Service; several views may share one segment.
//   - collection.Cache: entity + list-metadata specialization with write-path
//     invalidation.
//
// Keys inside a segment are owned by the caller; on the wire they become
//
//	<store>:<segment>:<key>
//
// Values are framed (see internal/wire) so foreign or truncated bytes are
// detected and dropped on read.
package segcache
