// Package search wraps the Elasticsearch client: index lifecycle, document
// upsert/delete, and query execution for the content index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/northmedia/searchsync/internal/domain"
)

// Config holds the Elasticsearch connection settings.
type Config struct {
	URL        string
	Username   string
	Password   string
	Index      string
	MaxRetries int
	Timeout    time.Duration
}

// Client wraps the Elasticsearch client for a single content index.
type Client struct {
	esClient *es.Client
	index    string
	timeout  time.Duration
}

// NewClient creates a client and verifies the connection with a ping.
func NewClient(cfg Config) (*Client, error) {
	addresses := []string{cfg.URL}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		addresses = []string{"http://" + cfg.URL}
	}

	clientConfig := es.Config{
		Addresses:  addresses,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	esClient, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	client := &Client{
		esClient: esClient,
		index:    cfg.Index,
		timeout:  cfg.Timeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping elasticsearch: %w", err)
	}

	return client, nil
}

// Ping verifies the Elasticsearch connection.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.esClient.Ping(c.esClient.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch ping failed: %s", string(body))
	}
	return nil
}

// EnsureIndex creates the content index with its mapping if it does not
// exist. Safe to call on every startup.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.esClient.Indices.Exists([]string{c.index},
		c.esClient.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index existence: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusNotFound {
		if res.IsError() {
			return fmt.Errorf("check index existence: %s", res.String())
		}
		return nil
	}

	mappingBytes, err := json.Marshal(ContentMapping())
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	createRes, err := c.esClient.Indices.Create(c.index,
		c.esClient.Indices.Create.WithBody(bytes.NewReader(mappingBytes)),
		c.esClient.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() {
		_ = createRes.Body.Close()
	}()

	if createRes.IsError() {
		body, _ := io.ReadAll(createRes.Body)
		return fmt.Errorf("create index: %s", string(body))
	}
	return nil
}

// Upsert indexes a document under its id, overwriting any previous version,
// and refreshes the index so the write is immediately queryable.
func (c *Client) Upsert(ctx context.Context, doc *domain.SearchDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := c.esClient.Index(c.index, bytes.NewReader(body),
		c.esClient.Index.WithDocumentID(doc.ID),
		c.esClient.Index.WithRefresh("true"),
		c.esClient.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index document %s: [%d] %s", doc.ID, res.StatusCode, string(raw))
	}
	return nil
}

// Delete removes the document for id. A missing document is success, so
// duplicate delete deliveries are idempotent.
func (c *Client) Delete(ctx context.Context, id string) error {
	res, err := c.esClient.Delete(c.index, id,
		c.esClient.Delete.WithRefresh("true"),
		c.esClient.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete document %s: [%d] %s", id, res.StatusCode, string(raw))
	}
	return nil
}

// Search executes the given query against the content index and returns the
// matching documents with their scores and the total hit count.
func (c *Client) Search(ctx context.Context, query map[string]any) ([]domain.SearchResult, int64, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, 0, fmt.Errorf("encode query: %w", err)
	}

	res, err := c.esClient.Search(
		c.esClient.Search.WithContext(ctx),
		c.esClient.Search.WithIndex(c.index),
		c.esClient.Search.WithBody(&buf),
		c.esClient.Search.WithTimeout(c.timeout),
		c.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, 0, fmt.Errorf("search returned error [%d]: %s", res.StatusCode, string(body))
	}

	var esResponse struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string                `json:"_id"`
				Score  float64               `json:"_score"`
				Source domain.SearchDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(esResponse.Hits.Hits))
	for i := range esResponse.Hits.Hits {
		hit := &esResponse.Hits.Hits[i]
		if hit.Source.ID == "" {
			hit.Source.ID = hit.ID
		}
		results = append(results, domain.SearchResult{
			Document: hit.Source,
			Score:    hit.Score,
		})
	}
	return results, esResponse.Hits.Total.Value, nil
}
