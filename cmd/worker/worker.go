package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"cdn-server/services/cdn-worker/internal/config"
	"cdn-server/services/cdn-worker/internal/domain/pipeline"
	"cdn-server/services/cdn-worker/internal/domain/retry"
	"cdn-server/services/cdn-worker/internal/infrastructure/cdnedge"
	"cdn-server/services/cdn-worker/internal/infrastructure/database"
	"cdn-server/services/cdn-worker/internal/infrastructure/imaging"
	"cdn-server/services/cdn-worker/internal/infrastructure/logger"
	"cdn-server/services/cdn-worker/internal/infrastructure/observability"
	"cdn-server/services/cdn-worker/internal/infrastructure/queue"
	filerepo "cdn-server/services/cdn-worker/internal/infrastructure/repository/file"
	jobrepo "cdn-server/services/cdn-worker/internal/infrastructure/repository/job"
	"cdn-server/services/cdn-worker/internal/infrastructure/storage"
	"cdn-server/services/cdn-worker/internal/interfaces/httpserver"
	"cdn-server/services/cdn-worker/internal/worker"
)

// Application bundles the worker's long-running loops. The HTTP server runs
// in the foreground; the consumer and purger run alongside it and share the
// same shutdown signal.
type Application struct {
	httpServer *httpserver.HttpServer
	consumer   *worker.Consumer
	purger     *worker.Purger
	log        zerolog.Logger
}

func NewApplication(
	httpServer *httpserver.HttpServer,
	consumer *worker.Consumer,
	purger *worker.Purger,
	log zerolog.Logger,
) *Application {
	return &Application{
		httpServer: httpServer,
		consumer:   consumer,
		purger:     purger,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.consumer.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error().Err(err).Msg("consumer stopped with error")
		}
	}()
	go func() {
		defer wg.Done()
		if err := a.purger.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error().Err(err).Msg("purger stopped with error")
		}
	}()

	err := a.httpServer.Run(ctx)
	wg.Wait()
	return err
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	storageClient, err := storage.NewS3Storage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize storage")
	}

	sqsClient, err := queue.NewSQSClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize queue client")
	}

	invalidator, err := cdnedge.NewInvalidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize CDN invalidator")
	}

	fileLedger := filerepo.NewRepository(db)
	jobLedger := jobrepo.NewRepository(db, cfg.JobMaxAttempts, cfg.JobLockStaleness)

	processor := pipeline.NewProcessFileHandler(
		fileLedger, storageClient, imaging.NewResizer(),
		cfg.S3BucketRaw, cfg.S3BucketProcessed, log,
	)
	deleter := pipeline.NewDeleteFileHandler(
		fileLedger, storageClient, invalidator,
		cfg.S3BucketRaw, cfg.S3BucketProcessed, log,
	)

	consumer := worker.NewConsumer(
		sqsClient,
		worker.ConsumerConfig{
			QueueURL:          cfg.QueueURL,
			WaitTime:          cfg.QueueWaitTime,
			VisibilityTimeout: cfg.VisibilityTimeout,
			BatchSize:         cfg.QueueBatchSize,
			JobTimeout:        cfg.JobTimeout,
		},
		jobLedger, processor, deleter, retry.DefaultPolicy(), log,
	)

	purger := worker.NewPurger(fileLedger, worker.PurgerConfig{
		Retention:          cfg.PurgeRetention,
		StuckUploadTimeout: cfg.StuckUploadTimeout,
		PurgeInterval:      cfg.PurgeInterval,
		StuckSweepInterval: cfg.StuckSweepInterval,
		BatchSize:          cfg.PurgeBatchSize,
	}, log)

	httpServer := httpserver.New(cfg, log, db)
	app := NewApplication(httpServer, consumer, purger, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
