// Package cache provides the read-through Redis cache for entity lookups and
// search-result pages, with point and prefix invalidation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
)

const (
	connectTimeout = 2 * time.Second
	scanBatchSize  = 100
)

// NewClient creates a Redis client and verifies the connection with a ping.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	return client, nil
}

// Cache is a namespaced read-through cache. It fails open: Redis errors are
// logged and reads degrade to misses, so an unavailable cache never takes
// down the read path.
type Cache struct {
	client  *redis.Client
	ns      string
	ttl     time.Duration
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates a cache over the given client. ttl is the default entry
// lifetime; entries expire by TTL regardless of explicit invalidation.
func New(client *redis.Client, ns string, ttl time.Duration, log logger.Logger, m *metrics.Metrics) *Cache {
	return &Cache{
		client:  client,
		ns:      ns,
		ttl:     ttl,
		logger:  log,
		metrics: m,
	}
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get unmarshals the cached value for key into dest and reports whether it
// was present.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	full := c.ns + ":" + key
	data, err := c.client.Get(ctx, full).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed, treating as miss",
				logger.String("key", full),
				logger.Error(err))
		}
		c.metrics.CacheMissesTotal.Inc()
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss",
			logger.String("key", full),
			logger.Error(err))
		c.metrics.CacheMissesTotal.Inc()
		return false
	}
	c.metrics.CacheHitsTotal.Inc()
	return true
}

// Set stores value under key with the default TTL. Failures are logged only;
// a missed write just means the next read recomputes.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	full := c.ns + ":" + key
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache marshal failed", logger.String("key", full), logger.Error(err))
		return
	}
	if err := c.client.Set(ctx, full, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", logger.String("key", full), logger.Error(err))
	}
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	full := c.ns + ":" + key
	if err := c.client.Del(ctx, full).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", full, err)
	}
	c.metrics.CacheInvalidations.WithLabelValues("point").Inc()
	return nil
}

// DeleteByPrefix scans for every key under the namespace prefix and deletes
// it, returning the number of keys removed. Used to drop all cached search
// pages on any mutation.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	pattern := c.ns + ":" + prefix + "*"
	var deleted int64
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("delete key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan pattern %s: %w", pattern, err)
	}
	c.metrics.CacheInvalidations.WithLabelValues("prefix").Inc()
	return deleted, nil
}
