package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/stanstork/stratum-etl/internal/handlers"
	"github.com/stanstork/stratum-etl/internal/metrics"
	"github.com/stanstork/stratum-etl/internal/routes"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled batches and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.serve(cmd.Context())
		},
	}
}

func (app *application) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cronLogger := app.logger.With().Str("component", "cron").Logger()
	scheduler := cron.New(cron.WithLogger(cron.PrintfLogger(&cronLogger)), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(app.config.Batch.Schedule, func() {
		summary, err := app.runBatch(ctx, "cron", nil)
		if err != nil {
			app.logger.Error().Err(err).Msg("Scheduled batch failed")
			return
		}
		logSummary(app, summary)
	}); err != nil {
		return pkgerrors.Wrapf(err, "invalid batch.schedule %q", app.config.Batch.Schedule)
	}
	scheduler.Start()
	app.logger.Info().Str("schedule", app.config.Batch.Schedule).Msg("Batch scheduler started")

	trigger := func(_ context.Context, ids []int64) (string, error) {
		runID := uuid.NewString()
		go func() {
			metrics.BatchesTotal.WithLabelValues("api").Inc()
			ids, err := app.dataSourceIDs(ctx, ids)
			if err != nil {
				app.logger.Error().Err(err).Str("run_id", runID).Msg("Triggered batch failed")
				return
			}
			logSummary(app, app.newPool().RunBatch(ctx, runID, ids))
		}()
		return runID, nil
	}

	router := routes.NewRouter(
		handlers.NewHealthHandler(app.db),
		handlers.NewJobHandler(app.executions, app.guard, app.logger),
		handlers.NewBatchHandler(trigger, app.logger),
		app.logger,
	)
	server := &http.Server{
		Addr:              ":" + app.config.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		app.logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		app.logger.Info().Msg("Shutting down...")
	case serveErr = <-serverErrCh:
		app.logger.Error().Err(serveErr).Msg("Server error occurred")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		app.logger.Info().Msg("HTTP server shutdown complete.")
	}

	// wait for a running scheduled batch to return
	<-scheduler.Stop().Done()
	app.logger.Info().Msg("Batch scheduler stopped.")
	return serveErr
}
