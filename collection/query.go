package collection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/segcache"
)

// ListQuery is the signature of a paginated, filtered list request.
// Zero values mean "not supplied".
type ListQuery struct {
	Status   string
	Search   string
	AreaID   string
	Page     int
	PageSize int
}

// Normalize applies the defaulting rules: page 1 and the given page size
// when absent. Equivalent queries normalize to equal values.
func (q ListQuery) Normalize(defaultPageSize int) ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	return q
}

// FirstPage is the most common shape for a status partition.
func FirstPage(status string) ListQuery { return ListQuery{Status: status} }

// Pagination is what the remote source reported for a list.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize,omitempty"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages,omitempty"`
}

// ListMetadata is a cached list result: identifiers only, never payloads.
type ListMetadata[ID comparable] struct {
	EntityIDs  []ID       `json:"entityIds"`
	Pagination Pagination `json:"pagination"`
	FetchedAt  int64      `json:"fetchedAt"` // unix ms
}

// Recognized Params keys for ParseQuery.
const (
	ParamStatus   = "status"
	ParamSearch   = "search"
	ParamAreaID   = "areaId"
	ParamPage     = "page"
	ParamPageSize = "pageSize"
)

// ParseQuery reads a ListQuery from loosely typed params (query strings,
// handler maps). Unknown keys are ignored; unparsable numbers count as absent.
func ParseQuery(p segcache.Params) ListQuery {
	return ListQuery{
		Status:   str(p[ParamStatus]),
		Search:   str(p[ParamSearch]),
		AreaID:   str(p[ParamAreaID]),
		Page:     num(p[ParamPage]),
		PageSize: num(p[ParamPageSize]),
	}
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func num(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
