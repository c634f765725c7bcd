package search

import "github.com/northmedia/searchsync/internal/domain"

const titleBoost = "title^2"

// QueryBuilder builds Elasticsearch queries from normalized search requests.
type QueryBuilder struct{}

// NewQueryBuilder creates a new query builder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Build constructs the complete Elasticsearch query body.
func (qb *QueryBuilder) Build(req *domain.SearchRequest) map[string]any {
	return map[string]any{
		"query":            qb.buildBoolQuery(req),
		"from":             (req.Pagination.Page - 1) * req.Pagination.Limit,
		"size":             req.Pagination.Limit,
		"sort":             qb.buildSort(req.Sort),
		"track_total_hits": true,
	}
}

// buildBoolQuery combines the free-text clause with exact filters.
func (qb *QueryBuilder) buildBoolQuery(req *domain.SearchRequest) map[string]any {
	boolQuery := map[string]any{}

	if req.Query != "" {
		boolQuery["must"] = []any{qb.buildMultiMatchQuery(req.Query)}
	}

	if filters := qb.buildFilters(&req.Filters); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	if len(boolQuery) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{"bool": boolQuery}
}

// buildMultiMatchQuery creates the fuzzy multi-field match with the title
// boosted above description and tags.
func (qb *QueryBuilder) buildMultiMatchQuery(query string) map[string]any {
	return map[string]any{
		"multi_match": map[string]any{
			"query":     query,
			"fields":    []string{titleBoost, "description", "tags"},
			"type":      "best_fields",
			"operator":  "or",
			"fuzziness": "AUTO",
		},
	}
}

// buildFilters constructs the filter clauses. Each requested tag yields its
// own term filter, so the document must contain all of them.
func (qb *QueryBuilder) buildFilters(filters *domain.Filters) []any {
	var result []any

	if filters.Category != "" {
		result = append(result, map[string]any{
			"term": map[string]any{"category": filters.Category},
		})
	}
	if filters.Type != "" {
		result = append(result, map[string]any{
			"term": map[string]any{"type": filters.Type},
		})
	}
	if filters.Language != "" {
		result = append(result, map[string]any{
			"term": map[string]any{"language": filters.Language},
		})
	}
	for _, tag := range filters.Tags {
		result = append(result, map[string]any{
			"term": map[string]any{"tags": tag},
		})
	}

	if filters.FromDate != nil || filters.ToDate != nil {
		dateRange := map[string]any{}
		if filters.FromDate != nil {
			dateRange["gte"] = filters.FromDate.UTC().Format("2006-01-02")
		}
		if filters.ToDate != nil {
			dateRange["lte"] = filters.ToDate.UTC().Format("2006-01-02")
		}
		result = append(result, map[string]any{
			"range": map[string]any{"publication_date": dateRange},
		})
	}

	return result
}

// buildSort maps the mutually exclusive sort orders to ES sort criteria.
func (qb *QueryBuilder) buildSort(sortOrder string) []any {
	switch sortOrder {
	case domain.SortRecency:
		return []any{
			map[string]any{"publication_date": map[string]any{"order": "desc"}},
			map[string]any{"_score": map[string]any{"order": "desc"}},
		}
	case domain.SortPopularity:
		return []any{
			map[string]any{"popularity_score": map[string]any{"order": "desc"}},
			map[string]any{"_score": map[string]any{"order": "desc"}},
		}
	default:
		return []any{
			map[string]any{"_score": map[string]any{"order": "desc"}},
		}
	}
}

// BuildSuggest constructs a title prefix query for typeahead suggestions.
func (qb *QueryBuilder) BuildSuggest(prefix string, size int) map[string]any {
	return map[string]any{
		"size":    size,
		"_source": []string{"id", "title"},
		"query": map[string]any{
			"match_phrase_prefix": map[string]any{
				"title": map[string]any{
					"query": prefix,
					"slop":  0,
				},
			},
		},
	}
}
