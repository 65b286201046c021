package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/segcache"
	"github.com/unkn0wn-root/segcache/collection"
)

var ErrNotFound = errors.New("accounts: not found")

// Page is one page of accounts as returned by the source.
type Page struct {
	Accounts   []Account
	Pagination collection.Pagination
}

// Source is the system of record, usually a remote API client. Get returns
// ErrNotFound for unknown ids; GetMany silently omits them.
type Source interface {
	List(ctx context.Context, q collection.ListQuery) (Page, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetMany(ctx context.Context, ids []int64) ([]Account, error)
	Create(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) (Account, error)
	SetStatus(ctx context.Context, id int64, status Status) (Account, error)
	Delete(ctx context.Context, id int64) error
}

// Repository reads through the cache and keeps it consistent on writes.
// Source errors are returned; cache faults never are.
type Repository struct {
	src   Source
	cache *Cache
	log   segcache.Logger
}

func NewRepository(src Source, cache *Cache) *Repository {
	return &Repository{src: src, cache: cache, log: cache.Service().Logger()}
}

func (r *Repository) Cache() *Cache { return r.cache }

func (r *Repository) Get(ctx context.Context, id int64) (Account, error) {
	if a, ok := r.cache.GetEntity(ctx, id); ok {
		return a, nil
	}
	a, err := r.src.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	r.cache.SetEntity(ctx, id, a)
	return a, nil
}

// List serves a page from cached list metadata when every referenced account
// can be materialized, fetching cache misses in one batch. A page that points
// at accounts the source no longer has is dropped and fetched again.
func (r *Repository) List(ctx context.Context, q collection.ListQuery) (Page, error) {
	q = q.Normalize(r.cache.DefaultPageSize())
	if md, ok := r.cache.GetListMetadata(ctx, q); ok {
		if accs, ok := r.materialize(ctx, md.EntityIDs); ok {
			return Page{Accounts: accs, Pagination: md.Pagination}, nil
		}
		r.cache.DropListMetadata(ctx, q)
	}

	page, err := r.src.List(ctx, q)
	if err != nil {
		return Page{}, err
	}
	ids := make([]int64, len(page.Accounts))
	for i, a := range page.Accounts {
		ids[i] = a.ID
	}
	r.cache.SetEntities(ctx, page.Accounts)
	r.cache.SetListMetadata(ctx, q, ids, page.Pagination)
	return page, nil
}

func (r *Repository) materialize(ctx context.Context, ids []int64) ([]Account, bool) {
	out := make([]Account, len(ids))
	if len(ids) == 0 {
		return out, true
	}
	cached := r.cache.GetEntitiesByIDs(ctx, ids)
	var missing []int64
	for i, id := range ids {
		if cached[i] == nil {
			missing = append(missing, id)
			continue
		}
		out[i] = *cached[i]
	}
	if len(missing) == 0 {
		return out, true
	}

	fetched, err := r.src.GetMany(ctx, missing)
	if err != nil {
		r.log.Warn("account batch fetch failed; refetching page", segcache.Fields{"missing": len(missing), "err": err})
		return nil, false
	}
	byID := make(map[int64]Account, len(fetched))
	for _, a := range fetched {
		byID[a.ID] = a
	}
	for i, id := range ids {
		if cached[i] != nil {
			continue
		}
		a, ok := byID[id]
		if !ok {
			r.log.Debug("cached page references unknown account", segcache.Fields{"id": id})
			return nil, false
		}
		out[i] = a
	}
	r.cache.SetEntities(ctx, fetched)
	return out, true
}

func (r *Repository) Create(ctx context.Context, a Account) (Account, error) {
	if a.Status == "" {
		a.Status = StatusPending
	}
	if !a.Status.Valid() {
		return Account{}, fmt.Errorf("accounts: invalid status %q", a.Status)
	}
	created, err := r.src.Create(ctx, a)
	if err != nil {
		return Account{}, err
	}
	r.cache.AddToList(ctx, created, collection.FirstPage(string(created.Status)))
	return created, nil
}

// Update writes a through the source. The previous status is taken from the
// cache when present; either way every list view is invalidated.
func (r *Repository) Update(ctx context.Context, a Account) (Account, error) {
	prev := r.cachedStatus(ctx, a.ID)
	updated, err := r.src.Update(ctx, a)
	if err != nil {
		return Account{}, err
	}
	r.cache.UpdateEntity(ctx, updated.ID, updated, prev)
	return updated, nil
}

func (r *Repository) ChangeStatus(ctx context.Context, id int64, status Status) (Account, error) {
	if !status.Valid() {
		return Account{}, fmt.Errorf("accounts: invalid status %q", status)
	}
	prev := r.cachedStatus(ctx, id)
	updated, err := r.src.SetStatus(ctx, id, status)
	if err != nil {
		return Account{}, err
	}
	r.cache.UpdateEntity(ctx, id, updated, prev)
	return updated, nil
}

func (r *Repository) Remove(ctx context.Context, id int64) error {
	prev := r.cachedStatus(ctx, id)
	if err := r.src.Delete(ctx, id); err != nil {
		return err
	}
	r.cache.RemoveFromList(ctx, id, prev)
	return nil
}

func (r *Repository) cachedStatus(ctx context.Context, id int64) string {
	if a, ok := r.cache.GetEntity(ctx, id); ok {
		return string(a.Status)
	}
	return ""
}
