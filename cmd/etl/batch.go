package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stanstork/stratum-etl/internal/metrics"
	"github.com/stanstork/stratum-etl/internal/models"
	etltemporal "github.com/stanstork/stratum-etl/internal/temporal"
	"github.com/stanstork/stratum-etl/internal/temporal/workflows"
	tc "go.temporal.io/sdk/client"
)

func newBatchCommand() *cobra.Command {
	var useTemporal bool
	cmd := &cobra.Command{
		Use:   "batch [datasrc_id...]",
		Short: "Run every data source, or the given ones, through the worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []int64
			for _, a := range args {
				id, err := parseDataSourceID(a)
				if err != nil {
					return usageError{err}
				}
				ids = append(ids, id)
			}

			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			var summary models.BatchSummary
			if useTemporal {
				summary, err = app.runTemporalBatch(cmd.Context(), ids)
			} else {
				summary, err = app.runBatch(cmd.Context(), "cli", ids)
			}
			if err != nil {
				return err
			}
			logSummary(app, summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useTemporal, "temporal", false, "start the batch workflow on Temporal and wait for it")
	return cmd
}

func (app *application) dialTemporal() (tc.Client, error) {
	c, err := tc.Dial(tc.Options{
		HostPort:  app.config.Temporal.HostPort,
		Namespace: app.config.Temporal.Namespace,
		Logger:    etltemporal.NewLogAdapter(app.logger),
	})
	return c, errors.Wrap(err, "unable to create Temporal client")
}

func (app *application) runTemporalBatch(ctx context.Context, ids []int64) (models.BatchSummary, error) {
	var summary models.BatchSummary
	c, err := app.dialTemporal()
	if err != nil {
		return summary, err
	}
	defer c.Close()

	params := etltemporal.BatchParams{
		RunID:             uuid.NewString(),
		DataSourceIDs:     ids,
		Pause:             app.config.Batch.Pause,
		InvocationTimeout: app.config.Batch.InvocationTimeout,
	}
	run, err := c.ExecuteWorkflow(ctx, tc.StartWorkflowOptions{
		ID:        etltemporal.WorkflowID(params.RunID),
		TaskQueue: app.config.Temporal.TaskQueue,
	}, workflows.BatchWorkflow, params)
	if err != nil {
		return summary, errors.Wrap(err, "start batch workflow")
	}
	metrics.BatchesTotal.WithLabelValues("temporal").Inc()
	app.logger.Info().Str("workflow_id", run.GetID()).Str("run_id", run.GetRunID()).Msg("Batch workflow started")

	if err := run.Get(ctx, &summary); err != nil {
		return summary, errors.Wrap(err, "batch workflow failed")
	}
	return summary, nil
}

func logSummary(app *application, s models.BatchSummary) {
	event := app.logger.Info()
	if s.Failed > 0 {
		event = app.logger.Warn().Strs("errors", s.Errors)
	}
	event.
		Str("run_id", s.RunID).
		Int("sources", s.Sources).
		Int("succeeded", s.Succeeded).
		Int("failed", s.Failed).
		Int("jobs_succeeded", s.JobsSucceeded).
		Int("jobs_failed", s.JobsFailed).
		Int("jobs_skipped", s.JobsSkipped).
		Dur("duration", s.Duration).
		Msg("Batch summary")
}
