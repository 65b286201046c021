// Package collection specializes segcache for a paginated, mutable entity
// collection. It caches two shapes in one segment:
//
//	entity:<id>                                  full entity
//	<status>:<search>:<areaId>:<page>:<pageSize>  list metadata (ids + pagination)
//	count:<status>:<search>:<areaId>              list totals
//
// List entries hold identifiers only; a list hit is materialized with
// GetEntitiesByIDs. Lists are never patched in place: any write drops every
// list-shaped key in the segment, while entity keys are written or dropped
// individually. Entity IDs must not contain ':'.
package collection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/segcache"
	c "github.com/unkn0wn-root/segcache/codec"
	"github.com/unkn0wn-root/segcache/config"
)

const (
	entityPrefix = "entity:"
	countPrefix  = "count:"

	// five ':'-separated fields; entity and count keys have fewer separators
	listPattern  = "*:*:*:*:*"
	countPattern = countPrefix + "*"
)

// Options configure a collection cache. Service and IDOf are required.
type Options[ID comparable, E any] struct {
	Service *segcache.Service

	// IDOf extracts the identifier; ok=false marks an entity without one.
	IDOf func(E) (ID, bool)
	// StatusOf extracts the classification used to partition lists.
	StatusOf func(E) string
	// KnownStatuses are the partitions whose first page is dropped eagerly.
	KnownStatuses []string

	EntityCodec c.Codec[E]               // nil => JSON
	ListCodec   c.Codec[ListMetadata[ID]] // nil => JSON

	DefaultPageSize int           // 0 => Service.Config().DefaultPageSize
	ListTTL         time.Duration // 0 => service default
	MaxConcurrency  int           // bound on batch fan-out; 0 => unbounded
	Now             func() time.Time
}

// Cache is the entity-collection cache. Safe for concurrent use.
type Cache[ID comparable, E any] struct {
	svc      *segcache.Service
	entities *segcache.Typed[E]
	lists    *segcache.Typed[ListMetadata[ID]]
	counts   *segcache.Typed[int64]
	log      segcache.Logger

	idOf            func(E) (ID, bool)
	statusOf        func(E) string
	known           []string
	defaultPageSize int
	listTTL         time.Duration
	maxConc         int
	now             func() time.Time
}

func New[ID comparable, E any](opts Options[ID, E]) (*Cache[ID, E], error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("collection: %w", &config.Error{Key: "service", Reason: "required"})
	}
	if opts.IDOf == nil {
		return nil, fmt.Errorf("collection: %w", &config.Error{Key: "id_of", Reason: "required"})
	}
	pageSize := opts.DefaultPageSize
	if pageSize == 0 {
		pageSize = opts.Service.Config().DefaultPageSize
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("collection: %w", &config.Error{Key: "default_page_size", Reason: "must be positive"})
	}

	var entityCodec c.Codec[E] = c.JSON[E]{}
	if opts.EntityCodec != nil {
		entityCodec = opts.EntityCodec
	}
	var listCodec c.Codec[ListMetadata[ID]] = c.JSON[ListMetadata[ID]]{}
	if opts.ListCodec != nil {
		listCodec = opts.ListCodec
	}

	cc := &Cache[ID, E]{
		svc:             opts.Service,
		entities:        segcache.NewTyped(opts.Service, entityCodec),
		lists:           segcache.NewTyped(opts.Service, listCodec),
		counts:          segcache.NewTyped[int64](opts.Service, c.JSON[int64]{}),
		log:             opts.Service.Logger(),
		idOf:            opts.IDOf,
		statusOf:        opts.StatusOf,
		known:           append([]string(nil), opts.KnownStatuses...),
		defaultPageSize: pageSize,
		listTTL:         opts.ListTTL,
		maxConc:         opts.MaxConcurrency,
		now:             opts.Now,
	}
	if cc.statusOf == nil {
		cc.statusOf = func(E) string { return "" }
	}
	if cc.now == nil {
		cc.now = time.Now
	}
	return cc, nil
}

func (cc *Cache[ID, E]) Enabled() bool              { return cc.svc.Enabled() }
func (cc *Cache[ID, E]) Service() *segcache.Service { return cc.svc }
func (cc *Cache[ID, E]) DefaultPageSize() int       { return cc.defaultPageSize }

// Keys

func (cc *Cache[ID, E]) GenerateEntityKey(id ID) string {
	return entityPrefix + fmt.Sprint(id)
}

func (cc *Cache[ID, E]) GenerateListKey(q ListQuery) string {
	q = q.Normalize(cc.defaultPageSize)
	return fmt.Sprintf("%s:%s:%s:%d:%d", q.Status, q.Search, q.AreaID, q.Page, q.PageSize)
}

// GenerateCountKey ignores pagination; a total is the same on every page.
func (cc *Cache[ID, E]) GenerateCountKey(q ListQuery) string {
	return countPrefix + strings.Join([]string{q.Status, q.Search, q.AreaID}, ":")
}

// GenerateKey maps loosely typed params to the list key.
func (cc *Cache[ID, E]) GenerateKey(p segcache.Params) string {
	return cc.GenerateListKey(ParseQuery(p))
}

// Entities

func (cc *Cache[ID, E]) GetEntity(ctx context.Context, id ID) (E, bool) {
	return cc.entities.GetByKey(ctx, cc.GenerateEntityKey(id))
}

func (cc *Cache[ID, E]) SetEntity(ctx context.Context, id ID, e E) {
	cc.entities.SetByKey(ctx, cc.GenerateEntityKey(id), e, 0)
}

func (cc *Cache[ID, E]) DropEntity(ctx context.Context, id ID) {
	cc.entities.DropByKey(ctx, cc.GenerateEntityKey(id))
}

// GetEntitiesByIDs looks every id up concurrently. The result is aligned with
// ids; nil at position i is a miss for ids[i]. A disabled cache or empty ids
// returns an empty slice without touching the store.
func (cc *Cache[ID, E]) GetEntitiesByIDs(ctx context.Context, ids []ID) []*E {
	if !cc.Enabled() || len(ids) == 0 {
		return []*E{}
	}
	out := make([]*E, len(ids))
	g := cc.group()
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if e, ok := cc.GetEntity(ctx, id); ok {
				out[i] = &e
			}
			return nil
		})
	}
	_ = g.Wait() // branches never fail; the service absorbs store errors
	return out
}

// SetEntities writes every entity concurrently, skipping those without an id.
func (cc *Cache[ID, E]) SetEntities(ctx context.Context, es []E) {
	if !cc.Enabled() || len(es) == 0 {
		return
	}
	g := cc.group()
	skipped := 0
	for _, e := range es {
		id, ok := cc.idOf(e)
		if !ok {
			skipped++
			continue
		}
		e := e
		g.Go(func() error {
			cc.SetEntity(ctx, id, e)
			return nil
		})
	}
	_ = g.Wait()
	if skipped > 0 {
		cc.log.Debug("entities without id not cached", segcache.Fields{"segment": cc.svc.Segment(), "skipped": skipped})
	}
}

func (cc *Cache[ID, E]) group() *errgroup.Group {
	g := new(errgroup.Group)
	if cc.maxConc > 0 {
		g.SetLimit(cc.maxConc)
	}
	return g
}

// Lists

func (cc *Cache[ID, E]) GetListMetadata(ctx context.Context, q ListQuery) (ListMetadata[ID], bool) {
	return cc.lists.GetByKey(ctx, cc.GenerateListKey(q))
}

// SetListMetadata stores ids and pagination, stamped with the current time.
func (cc *Cache[ID, E]) SetListMetadata(ctx context.Context, q ListQuery, ids []ID, p Pagination) {
	if !cc.Enabled() {
		return
	}
	md := ListMetadata[ID]{
		EntityIDs:  append([]ID(nil), ids...),
		Pagination: p,
		FetchedAt:  cc.now().UnixMilli(),
	}
	if md.EntityIDs == nil {
		md.EntityIDs = []ID{}
	}
	cc.lists.SetByKey(ctx, cc.GenerateListKey(q), md, cc.listTTL)
}

// DropListMetadata discards one list entry, e.g. after it referenced an id
// the source no longer has.
func (cc *Cache[ID, E]) DropListMetadata(ctx context.Context, q ListQuery) {
	cc.lists.DropByKey(ctx, cc.GenerateListKey(q))
}

func (cc *Cache[ID, E]) GetCount(ctx context.Context, q ListQuery) (int64, bool) {
	return cc.counts.GetByKey(ctx, cc.GenerateCountKey(q))
}

func (cc *Cache[ID, E]) SetCount(ctx context.Context, q ListQuery, total int64) {
	cc.counts.SetByKey(ctx, cc.GenerateCountKey(q), total, cc.listTTL)
}

// Invalidation

// InvalidateAll drops the list and count keys of every known partition.
// Entity keys are left alone; use Service().InvalidateAll to clear the segment.
func (cc *Cache[ID, E]) InvalidateAll(ctx context.Context) {
	cc.InvalidateLists(ctx)
}

// InvalidateLists eagerly drops the first page (default page size) and the
// count of each known status plus the given ones, then deletes every list and
// count key by pattern. On backends without pattern delete the remaining
// pagination/filter combinations expire by TTL.
func (cc *Cache[ID, E]) InvalidateLists(ctx context.Context, statuses ...string) {
	if !cc.Enabled() {
		return
	}
	for _, st := range cc.partitions(statuses) {
		q := FirstPage(st)
		cc.lists.DropByKey(ctx, cc.GenerateListKey(q))
		cc.counts.DropByKey(ctx, cc.GenerateCountKey(q))
	}
	lists, listsOK := cc.svc.DropPattern(ctx, listPattern)
	counts, countsOK := cc.svc.DropPattern(ctx, countPattern)
	cc.log.Debug("lists invalidated", segcache.Fields{
		"segment":  cc.svc.Segment(),
		"statuses": statuses,
		"lists":    lists,
		"counts":   counts,
		"pattern":  listsOK && countsOK,
	})
}

// partitions returns "" (unfiltered), the known statuses and extra, deduplicated.
func (cc *Cache[ID, E]) partitions(extra []string) []string {
	seen := make(map[string]struct{}, len(cc.known)+len(extra)+1)
	out := make([]string, 0, len(cc.known)+len(extra)+1)
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	add("")
	for _, s := range cc.known {
		add(s)
	}
	for _, s := range extra {
		add(s)
	}
	return out
}

// Write path

// AddToList caches a newly created entity and drops the lists it may now
// belong to, including the exact list it was created from.
func (cc *Cache[ID, E]) AddToList(ctx context.Context, e E, q ListQuery) {
	if !cc.Enabled() {
		return
	}
	if id, ok := cc.idOf(e); ok {
		cc.SetEntity(ctx, id, e)
	}
	cc.lists.DropByKey(ctx, cc.GenerateListKey(q))
	cc.InvalidateLists(ctx, cc.statusOf(e), q.Status)
}

// RemoveFromList drops the entity and the lists of its partition.
func (cc *Cache[ID, E]) RemoveFromList(ctx context.Context, id ID, status string) {
	if !cc.Enabled() {
		return
	}
	cc.DropEntity(ctx, id)
	cc.InvalidateLists(ctx, status)
}

// UpdateEntity refreshes the entity entry and drops list views. When the
// classification changed the old entry is removed first and both the old and
// the new partitions are invalidated.
func (cc *Cache[ID, E]) UpdateEntity(ctx context.Context, id ID, e E, previousStatus string) {
	if !cc.Enabled() {
		return
	}
	status := cc.statusOf(e)
	if previousStatus != "" && previousStatus != status {
		cc.DropEntity(ctx, id)
	}
	cc.SetEntity(ctx, id, e)
	cc.InvalidateLists(ctx, previousStatus, status)
}
