package domain

import (
	"fmt"
	"math"
	"time"
)

// Sort orders, mutually exclusive.
const (
	SortRelevance  = "relevance"
	SortRecency    = "recency"
	SortPopularity = "popularity"
)

// SearchRequest represents a search query against the index.
type SearchRequest struct {
	Query      string     `json:"query"`
	Filters    Filters    `json:"filters"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// Filters holds the exact-match and range filter criteria.
type Filters struct {
	Category string     `json:"category,omitempty"`
	Type     string     `json:"type,omitempty"`
	Language string     `json:"language,omitempty"`
	Tags     []string   `json:"tags,omitempty"` // document must contain all
	FromDate *time.Time `json:"from_date,omitempty"`
	ToDate   *time.Time `json:"to_date,omitempty"`
}

// Pagination holds offset/limit pagination parameters.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize applies defaults and bounds to the request in place so that
// logically equivalent requests become identical.
func (req *SearchRequest) Normalize(defaultLimit, maxLimit int) error {
	if req.Pagination.Page < 1 {
		req.Pagination.Page = 1
	}
	if req.Pagination.Limit < 1 {
		req.Pagination.Limit = defaultLimit
	}
	if req.Pagination.Limit > maxLimit {
		return fmt.Errorf("page limit exceeds maximum of %d", maxLimit)
	}
	switch req.Sort {
	case SortRelevance, SortRecency, SortPopularity:
	case "":
		req.Sort = SortRelevance
	default:
		return fmt.Errorf("unknown sort %q", req.Sort)
	}
	if req.Filters.FromDate != nil && req.Filters.ToDate != nil &&
		req.Filters.FromDate.After(*req.Filters.ToDate) {
		return fmt.Errorf("from_date cannot be after to_date")
	}
	return nil
}

// SearchResult is one hit returned to callers.
type SearchResult struct {
	Document SearchDocument `json:"document"`
	Score    float64        `json:"score"`
}

// SearchPage is a page of search results with pagination bookkeeping.
type SearchPage struct {
	Results    []SearchResult `json:"results"`
	TotalHits  int64          `json:"total_hits"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
	HasNext    bool           `json:"has_next"`
	HasPrev    bool           `json:"has_prev"`
}

// NewSearchPage computes pagination bookkeeping for a result set.
// TotalPages is never below one, even for an empty result set.
func NewSearchPage(results []SearchResult, total int64, page, limit int) *SearchPage {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	if totalPages < 1 {
		totalPages = 1
	}
	return &SearchPage{
		Results:    results,
		TotalHits:  total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// EmptySearchPage is the degraded response when the search engine is
// unavailable: availability over correctness on the read path.
func EmptySearchPage(page, limit int) *SearchPage {
	return NewSearchPage([]SearchResult{}, 0, page, limit)
}
