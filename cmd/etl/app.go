package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/config"
	"github.com/stanstork/stratum-etl/internal/connector"
	"github.com/stanstork/stratum-etl/internal/credentials"
	"github.com/stanstork/stratum-etl/internal/engine"
	"github.com/stanstork/stratum-etl/internal/extract"
	"github.com/stanstork/stratum-etl/internal/load"
	"github.com/stanstork/stratum-etl/internal/metrics"
	"github.com/stanstork/stratum-etl/internal/models"
	"github.com/stanstork/stratum-etl/internal/oauth"
	"github.com/stanstork/stratum-etl/internal/repository"
	"github.com/stanstork/stratum-etl/internal/schedule"
	"github.com/stanstork/stratum-etl/internal/schema"
	"github.com/stanstork/stratum-etl/internal/tracker"
	"github.com/stanstork/stratum-etl/internal/utils"
	"github.com/stanstork/stratum-etl/internal/worker"
)

type application struct {
	config     *config.Config
	db         *sqlx.DB
	logger     zerolog.Logger
	jobs       repository.JobRepository
	executions repository.ExecutionRepository
	guard      *schedule.Guard
	runner     *engine.Runner
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	logger = logger.With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.SetFlags(0)
	log.SetOutput(logger)
	return logger
}

// configPaths is the --config directory, or nil for the default lookup.
func configPaths() []string {
	if configDir == "" {
		return nil
	}
	return []string{configDir}
}

// newApplication loads configuration, connects to the metadata store and
// wires the job runner. Any error here is fatal.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load(configPaths()...)
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	logger := newLogger(cfg.Log)

	db, err := sqlx.ConnectContext(ctx, cfg.Metadata.Driver, cfg.Metadata.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "connect to metadata store")
	}

	app := &application{
		config:     cfg,
		db:         db,
		logger:     logger,
		jobs:       repository.NewJobRepository(db),
		executions: repository.NewExecutionRepository(db),
	}
	app.guard = schedule.NewGuard(app.executions, logger)

	if app.runner, err = app.newRunner(engine.NewTargetLocks()); err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

func (app *application) newRunner(locks *engine.TargetLocks) (*engine.Runner, error) {
	cfg := app.config

	registry, err := connector.NewRegistry(cfg.Connector.Aliases)
	if err != nil {
		return nil, errors.Wrap(err, "connector aliases")
	}
	secrets, err := utils.NewCipher(cfg.Secrets.EncryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "secrets.encryption_key")
	}

	tokens := oauth.NewManager(oauth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		AccountsURL:  cfg.OAuth.AccountsURL,
		Scope:        cfg.OAuth.Scope,
		PollInterval: cfg.OAuth.PollInterval,
		MaxAttempts:  cfg.OAuth.MaxAttempts,
	}, oauth.NewFileStore(cfg.OAuth.TokenFile), &http.Client{Timeout: cfg.Engine.HTTPTimeout}, app.logger)

	deps := engine.Deps{
		Jobs:        app.jobs,
		Guard:       app.guard,
		Credentials: credentials.NewResolver(repository.NewCredentialRepository(app.db), cfg.Engine.StrictCredentials, app.logger),
		Connectors: connector.NewFactory(registry, secrets, connector.Options{
			HTTPTimeout:     cfg.Engine.HTTPTimeout,
			PostgresSSLMode: cfg.Engine.PostgresSSLMode,
		}, app.logger),
		Extractor: extract.New(tokens, extract.Options{
			AuthScheme:    cfg.OAuth.AuthScheme,
			DefaultEntity: cfg.RestExport.Entity,
		}, app.logger),
		Adapter: schema.NewAdapter(cfg.Engine.VarcharThreshold),
		Loader:  load.New(cfg.Engine.LoadBatchSize, app.logger),
		Tracker: tracker.New(app.executions, app.logger),
	}
	return engine.NewRunner(deps, app.logger,
		engine.WithTargetRole(cfg.Engine.TargetRole),
		engine.WithJobTimeout(cfg.Engine.JobTimeout),
		engine.WithTargetLocks(locks),
	), nil
}

func (app *application) newPool() *worker.Pool {
	return worker.NewPool(worker.Config{
		Concurrency:       app.config.Batch.Concurrency,
		Pause:             app.config.Batch.Pause,
		InvocationTimeout: app.config.Batch.InvocationTimeout,
	}, app.runner.RunDataSource, app.logger)
}

// dataSourceIDs returns ids, or every data source when ids is empty.
func (app *application) dataSourceIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	sources, err := app.jobs.ListDataSources(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sources {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// runBatch passes over the given data sources (all when empty) through the
// worker pool.
func (app *application) runBatch(ctx context.Context, trigger string, ids []int64) (models.BatchSummary, error) {
	ids, err := app.dataSourceIDs(ctx, ids)
	if err != nil {
		return models.BatchSummary{}, err
	}
	metrics.BatchesTotal.WithLabelValues(trigger).Inc()
	return app.newPool().RunBatch(ctx, uuid.NewString(), ids), nil
}

func (app *application) Close() {
	if err := app.db.Close(); err != nil {
		app.logger.Warn().Err(err).Msg("Failed to close metadata store")
	}
}
