// Package api exposes the HTTP surface: the read side (search, content
// lookup, suggestions) plus the operational endpoints for liveness,
// metrics, job inspection, and the manual reindex and cleanup triggers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/northmedia/searchsync/internal/config"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"
	defaultFailedLimit   = 50
	maxFailedLimit       = 500
)

// Pinger reports reachability of a backing system.
type Pinger func(ctx context.Context) error

// Router holds the API dependencies.
type Router struct {
	cfg       *config.Config
	query     QueryService
	jobs      JobInspector
	reindexer ReindexTrigger
	sweeper   CleanupTrigger
	pingDB    Pinger
	pingCache Pinger
	pingIndex Pinger
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// NewRouter creates the API router.
func NewRouter(cfg *config.Config, query QueryService, jobs JobInspector,
	reindexer ReindexTrigger, sweeper CleanupTrigger,
	pingDB, pingCache, pingIndex Pinger, m *metrics.Metrics, log logger.Logger) *Router {
	return &Router{
		cfg:       cfg,
		query:     query,
		jobs:      jobs,
		reindexer: reindexer,
		sweeper:   sweeper,
		pingDB:    pingDB,
		pingCache: pingCache,
		pingIndex: pingIndex,
		metrics:   m,
		logger:    log,
	}
}

// SetupRoutes builds the gin engine with all routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", r.healthCheck)
	router.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	v1 := router.Group("/api/v1")
	v1.GET("/search", r.search)
	v1.GET("/content/:id", r.getContent)
	v1.GET("/suggest", r.suggest)
	v1.GET("/jobs/stats", r.getJobStats)
	v1.GET("/jobs/failed", r.listFailedJobs)
	v1.POST("/reindex", r.triggerReindex)
	v1.POST("/cleanup", r.triggerCleanup)

	return router
}

// NewServer wraps the router in an http.Server with the configured
// timeouts.
func (r *Router) NewServer() *http.Server {
	return &http.Server{
		Addr:         r.cfg.Server.Address,
		Handler:      r.SetupRoutes(),
		ReadTimeout:  r.cfg.Server.ReadTimeout,
		WriteTimeout: r.cfg.Server.WriteTimeout,
	}
}

// healthCheck reports liveness plus per-dependency reachability. Any
// unreachable dependency degrades the status but the endpoint still
// returns 200; orchestration liveness only needs the process up.
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "searchsync",
		"version": serviceVersion,
	}

	deps := gin.H{}
	for name, ping := range map[string]Pinger{
		"database": r.pingDB,
		"cache":    r.pingCache,
		"search":   r.pingIndex,
	} {
		if ping == nil {
			continue
		}
		if err := ping(ctx); err != nil {
			deps[name] = gin.H{"connected": false, "error": err.Error()}
			health["status"] = healthStatusDegraded
		} else {
			deps[name] = gin.H{"connected": true}
		}
	}
	health["dependencies"] = deps

	c.JSON(http.StatusOK, health)
}
