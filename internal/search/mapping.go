package search

// ContentMapping returns the Elasticsearch mapping for the content index.
// Exact-match fields are keywords; title carries a prefix subfield for
// typeahead; dates are date-typed with the formats the pipeline emits.
func ContentMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id": map[string]any{
					"type": "keyword",
				},
				"title": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"prefix": map[string]any{
							"type": "search_as_you_type",
						},
					},
				},
				"description": map[string]any{
					"type": "text",
				},
				"category": map[string]any{
					"type": "keyword",
				},
				"type": map[string]any{
					"type": "keyword",
				},
				"language": map[string]any{
					"type": "keyword",
				},
				"tags": map[string]any{
					"type": "keyword",
				},
				"popularity_score": map[string]any{
					"type": "integer",
				},
				"duration_seconds": map[string]any{
					"type": "integer",
				},
				"publication_date": map[string]any{
					"type":   "date",
					"format": "yyyy-MM-dd",
				},
				"thumbnail_url": map[string]any{
					"type":  "keyword",
					"index": false,
				},
				"platform": map[string]any{
					"type": "keyword",
				},
				"embed_url": map[string]any{
					"type":  "keyword",
					"index": false,
				},
				"indexed_at": map[string]any{
					"type": "date",
				},
			},
		},
	}
}
