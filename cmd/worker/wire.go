//go:build wireinject

package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cdn-server/services/cdn-worker/internal/config"
	"cdn-server/services/cdn-worker/internal/domain/file"
	"cdn-server/services/cdn-worker/internal/domain/job"
	"cdn-server/services/cdn-worker/internal/domain/pipeline"
	"cdn-server/services/cdn-worker/internal/domain/retry"
	"cdn-server/services/cdn-worker/internal/infrastructure/cdnedge"
	"cdn-server/services/cdn-worker/internal/infrastructure/database"
	"cdn-server/services/cdn-worker/internal/infrastructure/imaging"
	"cdn-server/services/cdn-worker/internal/infrastructure/logger"
	"cdn-server/services/cdn-worker/internal/infrastructure/queue"
	filerepo "cdn-server/services/cdn-worker/internal/infrastructure/repository/file"
	jobrepo "cdn-server/services/cdn-worker/internal/infrastructure/repository/job"
	"cdn-server/services/cdn-worker/internal/infrastructure/storage"
	"cdn-server/services/cdn-worker/internal/interfaces/httpserver"
	"cdn-server/services/cdn-worker/internal/worker"
)

var ledgerSet = wire.NewSet(
	filerepo.NewRepository,
	wire.Bind(new(file.Ledger), new(*filerepo.Repository)),
	newJobRepository,
	wire.Bind(new(job.Ledger), new(*jobrepo.Repository)),
)

var pipelineSet = wire.NewSet(
	storage.NewS3Storage,
	wire.Bind(new(pipeline.Storage), new(*storage.S3Storage)),
	imaging.NewResizer,
	wire.Bind(new(pipeline.ImageTransform), new(*imaging.Resizer)),
	cdnedge.NewInvalidator,
	wire.Bind(new(pipeline.CDN), new(*cdnedge.Invalidator)),
	newProcessFileHandler,
	newDeleteFileHandler,
)

// BuildApplication assembles the worker with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newGormDB,
		queue.NewSQSClient,
		ledgerSet,
		pipelineSet,
		retry.DefaultPolicy,
		newConsumer,
		newPurger,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newGormDB(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newJobRepository(db *gorm.DB, cfg *config.Config) *jobrepo.Repository {
	return jobrepo.NewRepository(db, cfg.JobMaxAttempts, cfg.JobLockStaleness)
}

func newProcessFileHandler(
	files file.Ledger,
	store pipeline.Storage,
	transform pipeline.ImageTransform,
	cfg *config.Config,
	log zerolog.Logger,
) *pipeline.ProcessFileHandler {
	return pipeline.NewProcessFileHandler(files, store, transform, cfg.S3BucketRaw, cfg.S3BucketProcessed, log)
}

func newDeleteFileHandler(
	files file.Ledger,
	store pipeline.Storage,
	cdn pipeline.CDN,
	cfg *config.Config,
	log zerolog.Logger,
) *pipeline.DeleteFileHandler {
	return pipeline.NewDeleteFileHandler(files, store, cdn, cfg.S3BucketRaw, cfg.S3BucketProcessed, log)
}

func newConsumer(
	client *sqs.Client,
	cfg *config.Config,
	jobs job.Ledger,
	processor *pipeline.ProcessFileHandler,
	deleter *pipeline.DeleteFileHandler,
	backoff retry.Policy,
	log zerolog.Logger,
) *worker.Consumer {
	return worker.NewConsumer(client, worker.ConsumerConfig{
		QueueURL:          cfg.QueueURL,
		WaitTime:          cfg.QueueWaitTime,
		VisibilityTimeout: cfg.VisibilityTimeout,
		BatchSize:         cfg.QueueBatchSize,
		JobTimeout:        cfg.JobTimeout,
	}, jobs, processor, deleter, backoff, log)
}

func newPurger(files file.Ledger, cfg *config.Config, log zerolog.Logger) *worker.Purger {
	return worker.NewPurger(files, worker.PurgerConfig{
		Retention:          cfg.PurgeRetention,
		StuckUploadTimeout: cfg.StuckUploadTimeout,
		PurgeInterval:      cfg.PurgeInterval,
		StuckSweepInterval: cfg.StuckSweepInterval,
		BatchSize:          cfg.PurgeBatchSize,
	}, log)
}
