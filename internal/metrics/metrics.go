// Package metrics defines the Prometheus collectors for the sync pipeline
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	EventsPublishedTotal *prometheus.CounterVec
	PublishFailuresTotal *prometheus.CounterVec
	EventsConsumedTotal  *prometheus.CounterVec
	EventHandleFailures  *prometheus.CounterVec
	JobsEnqueuedTotal    *prometheus.CounterVec
	JobsProcessedTotal   *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheInvalidations   *prometheus.CounterVec
	SearchQueriesTotal   *prometheus.CounterVec
	ReconcilePurgedTotal prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all pipeline metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchsync_events_published_total",
				Help: "Change events published, by topic.",
			},
			[]string{"topic"},
		),
		PublishFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchsync_publish_failures_total",
				Help: "Change event publish failures, by topic. Failures never fail the mutation.",
			},
			[]string{"topic"},
		),
		EventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchsync_events_consumed_total",
				Help: "Change events consumed and acknowledged, by topic.",
			},
			[]string{"topic"},
		),
		EventHandleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchsync_event_handle_failures_total",
				Help: "Event handler failures before acknowledgment, by topic. The broker redelivers these.",
			},
			[]string{"topic"},
		),
		JobsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchsync_jobs_enqueued_total",
				Help: "Index jobs enqueued, by kind and outcome (created, deduplicated).",
			},
			[]string{"kind", "outcome"},
		),
		JobsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchsync_jobs_processed_total",
				Help: "Index jobs completed, by kind and status (done, retry, failed).",
			},
			[]string{"kind", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchsync_job_duration_seconds",
				Help:    "Index job execution time in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "searchsync_cache_hits_total",
				Help: "Cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "searchsync_cache_misses_total",
				Help: "Cache misses, including degraded reads when Redis is unavailable.",
			},
		),
		CacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchsync_cache_invalidations_total",
				Help: "Cache invalidations, by mode (point, prefix).",
			},
			[]string{"mode"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchsync_search_queries_total",
				Help: "Search queries, by outcome (ok, cached, degraded, invalid).",
			},
			[]string{"outcome"},
		),
		ReconcilePurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "searchsync_reconcile_purged_total",
				Help: "Entities permanently purged by the reconciliation sweep.",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.EventsPublishedTotal,
		m.PublishFailuresTotal,
		m.EventsConsumedTotal,
		m.EventHandleFailures,
		m.JobsEnqueuedTotal,
		m.JobsProcessedTotal,
		m.JobDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidations,
		m.SearchQueriesTotal,
		m.ReconcilePurgedTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
