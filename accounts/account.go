// Package accounts is the account collection: the entity, its cache and a
// cache-aside repository over the remote account source.
package accounts

import (
	"time"

	"github.com/unkn0wn-root/segcache"
	c "github.com/unkn0wn-root/segcache/codec"
	"github.com/unkn0wn-root/segcache/collection"
)

// Segment is the store namespace used for accounts.
const Segment = "accounts"

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Statuses lists every status an account can have, in lifecycle order.
var Statuses = []Status{StatusPending, StatusActive, StatusInactive}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    Status    `json:"status"`
	AreaID    string    `json:"areaId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Cache is the account specialization of the collection cache.
type Cache = collection.Cache[int64, Account]

// ListMetadata is a cached account list page.
type ListMetadata = collection.ListMetadata[int64]

// CacheOptions tune NewCache. The zero value is ready to use.
type CacheOptions struct {
	ListTTL        time.Duration // 0 => service default
	MaxConcurrency int
}

// NewCache builds the account cache over svc. Entities are stored as CBOR,
// list metadata as msgpack.
func NewCache(svc *segcache.Service, opts CacheOptions) (*Cache, error) {
	known := make([]string, len(Statuses))
	for i, s := range Statuses {
		known[i] = string(s)
	}
	return collection.New(collection.Options[int64, Account]{
		Service:        svc,
		IDOf:           func(a Account) (int64, bool) { return a.ID, a.ID > 0 },
		StatusOf:       func(a Account) string { return string(a.Status) },
		KnownStatuses:  known,
		EntityCodec:    entityCodec,
		ListCodec:      c.Msgpack[ListMetadata]{},
		ListTTL:        opts.ListTTL,
		MaxConcurrency: opts.MaxConcurrency,
	})
}

var entityCodec = c.MustCBOR[Account](true)

// EntityCodec and ListCodec expose the wire codecs so tooling can decode
// raw entries.
func EntityCodec() c.Codec[Account]    { return entityCodec }
func ListCodec() c.Codec[ListMetadata] { return c.Msgpack[ListMetadata]{} }
