package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/ontokit/internal/analysis"
	"github.com/OFFIS-RIT/ontokit/internal/config"
	"github.com/OFFIS-RIT/ontokit/internal/queue"
	"github.com/OFFIS-RIT/ontokit/internal/storage"
	"github.com/OFFIS-RIT/ontokit/internal/util"
	"github.com/OFFIS-RIT/ontokit/pkg/leaselock"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"
	"github.com/OFFIS-RIT/ontokit/pkg/logger/console"
	"github.com/OFFIS-RIT/ontokit/pkg/similarity"
	pgstore "github.com/OFFIS-RIT/ontokit/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	cfg, err := config.Load()
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
		Level: cfg.LogLevel,
		JSON:  cfg.LogJSON,
	})
	logger.Init(consoleLogger)
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}
	if err := config.Require(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"RABBITMQ_URL": cfg.AMQPURL,
	}); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	// Load ontology, annotations and similarity
	src, err := analysis.SourcesFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("Invalid ontology source", "err", err)
	}
	engine, err := analysis.Load(ctx, src)
	if err != nil {
		logger.Fatal("Failed to load ontology", "err", err)
	}

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	processor := &queue.SamplingProcessor{
		Engine:  engine,
		Store:   pgstore.NewDistributionDBStorageWithConnection(pgConn),
		Locks:   leaselock.New(pgConn),
		Threads: cfg.WorkerThreads,
	}

	// Init s3 client; precomputed matrices are shared through the bucket
	if cfg.S3.Enabled() {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		artifacts := storage.NewArtifactStore(client, cfg.S3)
		processor.Artifacts = artifacts
		loadOrPrecompute(ctx, engine, artifacts, cfg.WorkerThreads)
	} else {
		if err := engine.Precompute(ctx, cfg.WorkerThreads); err != nil {
			logger.Fatal("Failed to precompute similarity", "err", err)
		}
	}

	// Init rabbitmq
	conn, err := queue.Init(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	err = queue.Consume(ctx, conn, queue.Queues, func(ctx context.Context, queueName string, body []byte) error {
		switch queueName {
		case queue.SamplingQueue:
			return processor.ProcessSamplingMessage(ctx, body)
		}
		logger.Warn("Dropping message from unknown queue", "queue", queueName)
		return nil
	})
	if err != nil {
		logger.Fatal("Consumer failed", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}

// loadOrPrecompute reuses the matrix of the ontology version from the
// bucket or computes and uploads it.
func loadOrPrecompute(ctx context.Context, engine *analysis.Engine, artifacts *storage.ArtifactStore, threads int) {
	key := storage.MatrixKey(engine.ID(), engine.Ontology().Version())

	var m similarity.ResnikMatrix
	if _, err := artifacts.Get(ctx, key, &m); err == nil {
		if err := engine.UseMatrix(m); err == nil {
			logger.Info("Loaded similarity matrix", "key", key, "terms", len(m.Terms))
			return
		}
		logger.Warn("Stored similarity matrix does not match the ontology", "key", key)
	}

	if err := engine.Precompute(ctx, threads); err != nil {
		logger.Fatal("Failed to precompute similarity", "err", err)
	}
	m, _ = engine.Matrix()
	if err := artifacts.Put(ctx, key, m); err != nil {
		logger.Warn("Failed to upload similarity matrix", "key", key, "err", err)
	}
}
