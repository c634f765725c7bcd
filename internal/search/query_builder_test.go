package search_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/search"
)

func normalizedRequest(t *testing.T, req domain.SearchRequest) *domain.SearchRequest {
	t.Helper()
	require.NoError(t, req.Normalize(10, 100))
	return &req
}

func TestBuildPagination(t *testing.T) {
	qb := search.NewQueryBuilder()

	body := qb.Build(normalizedRequest(t, domain.SearchRequest{
		Pagination: domain.Pagination{Page: 3, Limit: 20},
	}))

	assert.Equal(t, 40, body["from"])
	assert.Equal(t, 20, body["size"])
	assert.Equal(t, true, body["track_total_hits"])
}

func TestBuildEmptyRequestMatchesAll(t *testing.T) {
	qb := search.NewQueryBuilder()

	body := qb.Build(normalizedRequest(t, domain.SearchRequest{}))

	query, ok := body["query"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, query, "match_all")
}

func TestBuildMultiMatchBoostsTitle(t *testing.T) {
	qb := search.NewQueryBuilder()

	body := qb.Build(normalizedRequest(t, domain.SearchRequest{Query: "aurora"}))

	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	must := boolQuery["must"].([]any)
	require.Len(t, must, 1)

	multiMatch := must[0].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "aurora", multiMatch["query"])
	assert.Equal(t, []string{"title^2", "description", "tags"}, multiMatch["fields"])
	assert.Equal(t, "AUTO", multiMatch["fuzziness"])
}

func TestBuildFiltersOneTermPerTag(t *testing.T) {
	qb := search.NewQueryBuilder()

	body := qb.Build(normalizedRequest(t, domain.SearchRequest{
		Filters: domain.Filters{
			Category: "documentary",
			Tags:     []string{"nature", "north"},
		},
	}))

	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	filters := boolQuery["filter"].([]any)
	// category + one term per tag: a document must carry every tag.
	require.Len(t, filters, 3)

	tagTerms := 0
	for _, f := range filters {
		term, ok := f.(map[string]any)["term"].(map[string]any)
		require.True(t, ok)
		if _, isTag := term["tags"]; isTag {
			tagTerms++
		}
	}
	assert.Equal(t, 2, tagTerms)
}

func TestBuildDateRangeFilter(t *testing.T) {
	qb := search.NewQueryBuilder()

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	body := qb.Build(normalizedRequest(t, domain.SearchRequest{
		Filters: domain.Filters{FromDate: &from, ToDate: &to},
	}))

	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	filters := boolQuery["filter"].([]any)
	require.Len(t, filters, 1)

	dateRange := filters[0].(map[string]any)["range"].(map[string]any)["publication_date"].(map[string]any)
	assert.Equal(t, "2024-01-01", dateRange["gte"])
	assert.Equal(t, "2024-06-30", dateRange["lte"])
}

func TestBuildSortOrders(t *testing.T) {
	qb := search.NewQueryBuilder()

	testCases := []struct {
		sort      string
		wantFirst string
	}{
		{domain.SortRelevance, "_score"},
		{domain.SortRecency, "publication_date"},
		{domain.SortPopularity, "popularity_score"},
	}

	for _, tc := range testCases {
		t.Run(tc.sort, func(t *testing.T) {
			body := qb.Build(normalizedRequest(t, domain.SearchRequest{Sort: tc.sort}))

			sorts := body["sort"].([]any)
			require.NotEmpty(t, sorts)
			first := sorts[0].(map[string]any)
			assert.Contains(t, first, tc.wantFirst)
		})
	}
}

func TestBuildSuggest(t *testing.T) {
	qb := search.NewQueryBuilder()

	body := qb.BuildSuggest("nort", 5)

	assert.Equal(t, 5, body["size"])
	prefix := body["query"].(map[string]any)["match_phrase_prefix"].(map[string]any)["title"].(map[string]any)
	assert.Equal(t, "nort", prefix["query"])
}
