// Package config loads the pipeline configuration from a YAML file with
// defaults and environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAdminAddress    = ":8075"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 30 * time.Second

	defaultIndexName   = "content_items"
	defaultCacheTTL    = 300 * time.Second
	defaultCacheNS     = "searchsync"
	defaultKafkaGroup  = "searchsync-indexer"
	defaultPrefetch    = 100
	defaultWorkers     = 4
	defaultPollEvery   = 2 * time.Second
	defaultBatchSize   = 50
	defaultMaxAttempts = 5

	defaultPageLimit = 10
	maxPageLimit     = 100

	defaultRetentionDays   = 90
	defaultCleanupSchedule = "0 4 * * *" // daily, 04:00
)

type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Search    SearchConfig    `yaml:"elasticsearch"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Queue     QueueConfig     `yaml:"queue"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type SearchConfig struct {
	URL              string        `yaml:"url"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	Index            string        `yaml:"index"`
	MaxRetries       int           `yaml:"max_retries"`
	Timeout          time.Duration `yaml:"timeout"`
	DefaultPageLimit int           `yaml:"default_page_limit"`
	MaxPageLimit     int           `yaml:"max_page_limit"`
}

type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Namespace string        `yaml:"namespace"`
	TTL       time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumer_group"`
	// Prefetch bounds the reader's in-flight message window per consumer.
	Prefetch int `yaml:"prefetch"`
}

type QueueConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type ReconcileConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	Schedule      string `yaml:"schedule"`
}

// Validate checks required settings after defaults are applied.
func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Search.URL == "" {
		return errors.New("elasticsearch.url is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Reconcile.RetentionDays < 1 {
		return fmt.Errorf("reconcile.retention_days must be positive, got %d", c.Reconcile.RetentionDays)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultAdminAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = defaultIndexName
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 10 * time.Second
	}
	if cfg.Search.DefaultPageLimit == 0 {
		cfg.Search.DefaultPageLimit = defaultPageLimit
	}
	if cfg.Search.MaxPageLimit == 0 {
		cfg.Search.MaxPageLimit = maxPageLimit
	}
	if cfg.Redis.Namespace == "" {
		cfg.Redis.Namespace = defaultCacheNS
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = defaultCacheTTL
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = defaultKafkaGroup
	}
	if cfg.Kafka.Prefetch == 0 {
		cfg.Kafka.Prefetch = defaultPrefetch
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = defaultWorkers
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = defaultPollEvery
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = defaultBatchSize
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Reconcile.RetentionDays == 0 {
		cfg.Reconcile.RetentionDays = defaultRetentionDays
	}
	if cfg.Reconcile.Schedule == "" {
		cfg.Reconcile.Schedule = defaultCleanupSchedule
	}
}

func overrideWithEnvVars(cfg *Config) {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if esURL := os.Getenv("ES_URL"); esURL != "" {
		cfg.Search.URL = esURL
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if group := os.Getenv("KAFKA_GROUP"); group != "" {
		cfg.Kafka.ConsumerGroup = group
	}
	if workers := os.Getenv("QUEUE_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.Queue.Workers = n
		}
	}
	if appDebug := os.Getenv("APP_DEBUG"); appDebug != "" {
		cfg.Debug = parseBool(appDebug)
	}
	if port := os.Getenv("ADMIN_PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}
}

// Load reads the config file, applies defaults, environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool accepts "true", "1" and "yes" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
