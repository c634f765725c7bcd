package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
)

// JobInspector reads job queue state.
type JobInspector interface {
	Stats(ctx context.Context) (*domain.JobStats, error)
	ListFailed(ctx context.Context, limit int) ([]domain.IndexJob, error)
}

// QueryService serves the read side: cached search pages, entity lookups,
// and title suggestions.
type QueryService interface {
	Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchPage, error)
	GetByID(ctx context.Context, id string) (*domain.ContentItem, error)
	Suggest(ctx context.Context, prefix string, size int) ([]string, error)
}

// ReindexTrigger publishes a full-reindex signal.
type ReindexTrigger interface {
	PublishReindexRequested(ctx context.Context)
}

// CleanupTrigger runs the retention sweep.
type CleanupTrigger interface {
	Sweep(ctx context.Context) error
}

// getJobStats returns queue counters and lag.
// GET /api/v1/jobs/stats
func (r *Router) getJobStats(c *gin.Context) {
	stats, err := r.jobs.Stats(c.Request.Context())
	if err != nil {
		r.logger.Error("failed to read job stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read job stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// listFailedJobs returns recently failed jobs for inspection.
// GET /api/v1/jobs/failed?limit=50
func (r *Router) listFailedJobs(c *gin.Context) {
	limit := defaultFailedLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxFailedLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be between 1 and 500",
			})
			return
		}
		limit = parsed
	}

	jobs, err := r.jobs.ListFailed(c.Request.Context(), limit)
	if err != nil {
		r.logger.Error("failed to list failed jobs", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list failed jobs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// search executes a search query, served from the cache when possible.
// GET /api/v1/search?q=aurora&category=nature&tags=north,lights&page=2&limit=10&sort=recency
func (r *Router) search(c *gin.Context) {
	req, err := parseSearchRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := r.query.Search(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, page)
}

// getContent returns one entity by id, read through the cache.
// GET /api/v1/content/:id
func (r *Router) getContent(c *gin.Context) {
	item, err := r.query.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Content not found"})
			return
		}
		r.logger.Error("failed to read content", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read content"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// suggest returns title completions for a prefix.
// GET /api/v1/suggest?q=nor&size=5
func (r *Router) suggest(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be an integer"})
			return
		}
		size = parsed
	}

	titles, err := r.query.Suggest(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		r.logger.Error("suggest failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Suggest failed"})
		return
	}
	if titles == nil {
		titles = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": titles})
}

// parseSearchRequest maps URL query parameters onto a SearchRequest.
// Bounds and defaults are applied by the query service, which normalizes
// the request before use.
func parseSearchRequest(c *gin.Context) (*domain.SearchRequest, error) {
	req := &domain.SearchRequest{
		Query: c.Query("q"),
		Sort:  c.Query("sort"),
		Filters: domain.Filters{
			Category: c.Query("category"),
			Type:     c.Query("type"),
			Language: c.Query("language"),
		},
	}
	if raw := c.Query("tags"); raw != "" {
		req.Filters.Tags = strings.Split(raw, ",")
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid from date %q, expected YYYY-MM-DD", raw)
		}
		req.Filters.FromDate = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid to date %q, expected YYYY-MM-DD", raw)
		}
		req.Filters.ToDate = &t
	}
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("page must be a positive integer")
		}
		req.Pagination.Page = parsed
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("limit must be a positive integer")
		}
		req.Pagination.Limit = parsed
	}
	return req, nil
}

// triggerReindex publishes the reindex signal. The actual work happens
// asynchronously through the pipeline, so this returns 202.
// POST /api/v1/reindex
func (r *Router) triggerReindex(c *gin.Context) {
	r.reindexer.PublishReindexRequested(c.Request.Context())
	r.logger.Info("full reindex requested via admin API")

	c.JSON(http.StatusAccepted, gin.H{
		"status": "reindex requested",
	})
}

// triggerCleanup runs the retention sweep synchronously.
// POST /api/v1/cleanup
func (r *Router) triggerCleanup(c *gin.Context) {
	if err := r.sweeper.Sweep(c.Request.Context()); err != nil {
		r.logger.Error("retention sweep failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Cleanup failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "cleanup completed",
	})
}
