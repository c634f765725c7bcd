// Package app wires the propagation pipeline together and manages its
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/northmedia/searchsync/internal/api"
	"github.com/northmedia/searchsync/internal/cache"
	"github.com/northmedia/searchsync/internal/config"
	"github.com/northmedia/searchsync/internal/database"
	"github.com/northmedia/searchsync/internal/events"
	"github.com/northmedia/searchsync/internal/indexer"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/media"
	"github.com/northmedia/searchsync/internal/metrics"
	"github.com/northmedia/searchsync/internal/query"
	"github.com/northmedia/searchsync/internal/queue"
	"github.com/northmedia/searchsync/internal/reconcile"
	"github.com/northmedia/searchsync/internal/search"
)

const schemaTimeout = 10 * time.Second

// App holds the wired pipeline components.
type App struct {
	config      *config.Config
	logger      logger.Logger
	metrics     *metrics.Metrics
	db          *sqlx.DB
	redisClient *redis.Client
	cache       *cache.Cache
	searchC     *search.Client
	contentRepo *database.ContentRepository
	jobService  *queue.Service
	worker      *queue.Worker
	scheduler   *queue.Scheduler
	publisher   *events.Publisher
	listener    *events.Listener
	sweeper     *reconcile.Sweeper
	httpServer  *http.Server
	version     string
}

// Options configures App construction.
type Options struct {
	ConfigPath string
	Version    string
}

// New loads configuration and connects every backing system. A failed
// connection to any of Postgres, Redis, Elasticsearch at startup is
// fatal; degradation only applies to failures after the pipeline is up.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "searchsync"),
		logger.String("version", opts.Version),
	)

	m := metrics.New()

	db, err := database.Connect(cfg.Postgres.DSN)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	schemaCtx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := database.EnsureJobSchema(schemaCtx, db); err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("ensure job schema: %w", err)
	}

	redisClient, err := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	appCache := cache.New(redisClient, cfg.Redis.Namespace, cfg.Redis.TTL, appLogger, m)

	searchClient, err := search.NewClient(search.Config{
		URL:        cfg.Search.URL,
		Username:   cfg.Search.Username,
		Password:   cfg.Search.Password,
		Index:      cfg.Search.Index,
		MaxRetries: cfg.Search.MaxRetries,
		Timeout:    cfg.Search.Timeout,
	})
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to elasticsearch: %w", err)
	}

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancelIndex()
	if err := searchClient.EnsureIndex(indexCtx); err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("ensure search index: %w", err)
	}

	contentRepo := database.NewContentRepository(db)
	jobRepo := database.NewJobRepository(db)

	jobService := queue.NewService(jobRepo, cfg.Queue.MaxAttempts, appLogger, m)

	providers := media.NewRegistry()
	processor := indexer.NewProcessor(contentRepo, searchClient, providers, appLogger)
	processor.RegisterHandlers(jobService)

	worker := queue.NewWorker(jobService, queue.WorkerConfig{
		Workers:      cfg.Queue.Workers,
		PollInterval: cfg.Queue.PollInterval,
		BatchSize:    cfg.Queue.BatchSize,
	}, appLogger)

	publisher := events.NewPublisher(cfg.Kafka.Brokers, appLogger, m)

	listener := events.NewListener(events.ListenerConfig{
		Brokers:       cfg.Kafka.Brokers,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
		Prefetch:      cfg.Kafka.Prefetch,
	}, jobService, appCache, appLogger, m)

	retention := time.Duration(cfg.Reconcile.RetentionDays) * 24 * time.Hour
	sweeper := reconcile.NewSweeper(contentRepo, searchClient, retention, appLogger, m)

	scheduler := queue.NewScheduler(appLogger)

	queryService := query.NewService(searchClient, contentRepo, appCache,
		cfg.Search.DefaultPageLimit, cfg.Search.MaxPageLimit, appLogger, m)

	router := api.NewRouter(cfg, queryService, jobService, publisher, sweeper,
		func(ctx context.Context) error { return db.PingContext(ctx) },
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		searchClient.Ping,
		m, appLogger)

	return &App{
		config:      cfg,
		logger:      appLogger,
		metrics:     m,
		db:          db,
		redisClient: redisClient,
		cache:       appCache,
		searchC:     searchClient,
		contentRepo: contentRepo,
		jobService:  jobService,
		worker:      worker,
		scheduler:   scheduler,
		publisher:   publisher,
		listener:    listener,
		sweeper:     sweeper,
		httpServer:  router.NewServer(),
		version:     opts.Version,
	}, nil
}

// Run starts the listener, worker, scheduler and admin server, then
// blocks until a shutdown signal or a fatal component error.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	listenerErr := make(chan error, 1)
	go func() {
		listenerErr <- a.listener.Run(runCtx)
	}()

	a.worker.Start(runCtx)

	if err := a.scheduler.Register("retention-sweep", a.config.Reconcile.Schedule, func() {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), time.Hour)
		defer sweepCancel()
		if err := a.sweeper.Sweep(sweepCtx); err != nil {
			a.logger.Error("scheduled retention sweep failed", logger.Error(err))
		}
	}); err != nil {
		cancel()
		a.worker.Stop()
		return fmt.Errorf("register retention sweep: %w", err)
	}
	a.scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("admin server listening",
			logger.String("address", a.config.Server.Address))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	a.logger.Info("pipeline started",
		logger.Int("workers", a.config.Queue.Workers),
		logger.String("consumer_group", a.config.Kafka.ConsumerGroup))

	return a.waitForShutdown(cancel, listenerErr, serverErr)
}

func (a *App) waitForShutdown(cancel context.CancelFunc, listenerErr, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down", logger.String("signal", sig.String()))
	case err := <-listenerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("listener error", logger.Error(err))
			runErr = err
		}
	case err := <-serverErr:
		a.logger.Error("admin server error", logger.Error(err))
		runErr = err
	}

	cancel()
	a.scheduler.Stop()
	a.worker.Stop()
	a.shutdownHTTPServer()

	// Drain the listener so consumer group offsets are committed.
	select {
	case err := <-listenerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("listener stopped with error", logger.Error(err))
		}
	case <-time.After(a.config.Server.ShutdownTimeout):
		a.logger.Warn("listener did not stop within shutdown timeout")
	}

	a.logger.Info("pipeline stopped")
	return runErr
}

func (a *App) shutdownHTTPServer() {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("admin server shutdown error", logger.Error(err))
	}
}

// Reindex publishes the full-reindex signal and returns once it is on
// the wire. The work itself runs through the pipeline.
func (a *App) Reindex(ctx context.Context) {
	a.publisher.PublishReindexRequested(ctx)
}

// Cleanup runs the retention sweep once.
func (a *App) Cleanup(ctx context.Context) error {
	return a.sweeper.Sweep(ctx)
}

// Close releases all connections.
func (a *App) Close() error {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("failed to close publisher", logger.Error(err))
	}
	if err := a.redisClient.Close(); err != nil {
		a.logger.Warn("failed to close redis client", logger.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", logger.Error(err))
	}
	return a.logger.Sync()
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}
