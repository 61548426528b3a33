package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/ontokit/internal/analysis"
	"github.com/OFFIS-RIT/ontokit/internal/config"
	"github.com/OFFIS-RIT/ontokit/internal/metrics"
	"github.com/OFFIS-RIT/ontokit/internal/queue"
	mid "github.com/OFFIS-RIT/ontokit/internal/server/middleware"
	"github.com/OFFIS-RIT/ontokit/internal/storage"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"
	pgstore "github.com/OFFIS-RIT/ontokit/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewEcho wires middleware and routes around app.
func NewEcho(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(metrics.Middleware())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)
	return e
}

// Init loads the engine, connects to the database, the queue and the
// bucket and serves until SIGINT or SIGTERM.
func Init(cfg config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Require(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"RABBITMQ_URL": cfg.AMQPURL,
	}); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	if v, err := pgstore.Migrate(cfg.MigrationsURL, cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	} else {
		logger.Info("Database schema up to date", "version", v)
	}

	conn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	dists := pgstore.NewDistributionDBStorageWithConnection(conn)

	src, err := analysis.SourcesFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("Invalid ontology source", "err", err)
	}
	engine, err := analysis.Load(ctx, src)
	if err != nil {
		logger.Fatal("Failed to load ontology", "err", err)
	}
	if err := engine.LoadDistributions(ctx, dists); err != nil {
		logger.Fatal("Failed to load distributions", "err", err)
	}
	if cfg.DistributionPath != "" {
		if err := engine.LoadDistributionFile(cfg.DistributionPath); err != nil {
			logger.Fatal("Failed to load distribution file", "err", err)
		}
	}
	logger.Info("Distributions loaded", "term_counts", engine.NumTerms())

	que, err := queue.Init(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	app := &mid.App{
		Engine:         engine,
		Store:          dists,
		Queue:          ch,
		Correction:     cfg.Correction,
		MasterAPIKey:   cfg.Auth.MasterAPIKey,
		MasterUserID:   int64(cfg.Auth.MasterUserID),
		MasterUserRole: cfg.Auth.MasterUserRole,
	}

	if cfg.Auth.JWKSURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.Auth.JWKSURL})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Key = k.Keyfunc
	}

	if cfg.S3.Enabled() {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		app.Artifacts = storage.NewArtifactStore(client, cfg.S3)
	}

	e := NewEcho(app)
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
