package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the worker.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"cdn-worker"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"WORKER_HTTP_PORT" envDefault:"8290"`
	LogLevel        string        `env:"WORKER_LOG_LEVEL" envDefault:"info"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database
	DatabaseURL    string        `env:"CDN_DATABASE_URL,notEmpty"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// S3 Storage
	S3Endpoint        string `env:"CDN_S3_ENDPOINT"`
	S3Region          string `env:"CDN_S3_REGION" envDefault:"us-west-2"`
	S3AccessKeyID     string `env:"CDN_S3_ACCESS_KEY_ID"`
	S3SecretKey       string `env:"CDN_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `env:"CDN_S3_USE_PATH_STYLE" envDefault:"true"`
	S3BucketRaw       string `env:"CDN_S3_BUCKET_RAW,notEmpty"`
	S3BucketProcessed string `env:"CDN_S3_BUCKET_PROCESSED,notEmpty"`

	// Queue (SQS)
	SQSEndpoint       string        `env:"CDN_SQS_ENDPOINT"` // LocalStack override
	QueueURL          string        `env:"CDN_QUEUE_URL,notEmpty"`
	QueueWaitTime     time.Duration `env:"CDN_QUEUE_WAIT_TIME" envDefault:"20s"`
	VisibilityTimeout time.Duration `env:"CDN_QUEUE_VISIBILITY_TIMEOUT" envDefault:"2m"`
	QueueBatchSize    int           `env:"CDN_QUEUE_BATCH_SIZE" envDefault:"5"`
	JobTimeout        time.Duration `env:"CDN_JOB_TIMEOUT" envDefault:"90s"`

	// Job ledger
	JobMaxAttempts   int           `env:"CDN_JOB_MAX_ATTEMPTS" envDefault:"3"`
	JobLockStaleness time.Duration `env:"CDN_JOB_LOCK_STALENESS" envDefault:"10m"`

	// Purger
	PurgeRetention     time.Duration `env:"CDN_PURGE_RETENTION" envDefault:"720h"` // 30 days
	PurgeBatchSize     int           `env:"CDN_PURGE_BATCH_SIZE" envDefault:"100"`
	PurgeInterval      time.Duration `env:"CDN_PURGE_INTERVAL" envDefault:"10m"`
	StuckUploadTimeout time.Duration `env:"CDN_STUCK_UPLOAD_TIMEOUT" envDefault:"24h"`
	StuckSweepInterval time.Duration `env:"CDN_STUCK_SWEEP_INTERVAL" envDefault:"5m"`

	// CloudFront
	CloudFrontDistributionID string `env:"CLOUDFRONT_DISTRIBUTION_ID"`
	EnableCDNInvalidation    bool   `env:"ENABLE_CLOUDFRONT_INVALIDATION" envDefault:"true"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.S3Endpoint = strings.TrimSpace(cfg.S3Endpoint)
	cfg.S3AccessKeyID = strings.TrimSpace(cfg.S3AccessKeyID)
	cfg.S3SecretKey = strings.TrimSpace(cfg.S3SecretKey)
	cfg.S3BucketRaw = strings.TrimSpace(cfg.S3BucketRaw)
	cfg.S3BucketProcessed = strings.TrimSpace(cfg.S3BucketProcessed)

	if cfg.QueueBatchSize <= 0 || cfg.QueueBatchSize > 10 {
		return nil, fmt.Errorf("CDN_QUEUE_BATCH_SIZE must be between 1 and 10, got %d", cfg.QueueBatchSize)
	}
	if cfg.JobMaxAttempts <= 0 {
		cfg.JobMaxAttempts = 3
	}
	if cfg.VisibilityTimeout < cfg.JobTimeout {
		return nil, fmt.Errorf("visibility timeout %s is shorter than the job timeout %s; messages would be redelivered mid-processing", cfg.VisibilityTimeout, cfg.JobTimeout)
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
