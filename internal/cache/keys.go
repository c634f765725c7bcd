package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/northmedia/searchsync/internal/domain"
)

// Key namespaces under the cache namespace prefix.
const (
	EntityPrefix = "entity"
	SearchPrefix = "search"
)

// EntityKey returns the cache key for a single entity lookup.
func EntityKey(id string) string {
	return EntityPrefix + ":" + id
}

// SearchKey returns the cache key for a search-result page. The request must
// already be normalized; the serialization sorts list-valued parameters so
// logically equivalent queries share one entry.
func SearchKey(req *domain.SearchRequest) string {
	canonical := canonicalQuery(req)
	sum := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("%s:%x", SearchPrefix, sum[:16])
}

func canonicalQuery(req *domain.SearchRequest) string {
	tags := append([]string(nil), req.Filters.Tags...)
	sort.Strings(tags)

	from, to := "", ""
	if req.Filters.FromDate != nil {
		from = req.Filters.FromDate.UTC().Format("2006-01-02")
	}
	if req.Filters.ToDate != nil {
		to = req.Filters.ToDate.UTC().Format("2006-01-02")
	}

	parts := []string{
		"q=" + strings.ToLower(strings.TrimSpace(req.Query)),
		"cat=" + req.Filters.Category,
		"type=" + req.Filters.Type,
		"lang=" + req.Filters.Language,
		"tags=" + strings.Join(tags, ","),
		"from=" + from,
		"to=" + to,
		"sort=" + req.Sort,
		fmt.Sprintf("page=%d", req.Pagination.Page),
		fmt.Sprintf("limit=%d", req.Pagination.Limit),
	}
	return strings.Join(parts, "|")
}
