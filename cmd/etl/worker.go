package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stanstork/stratum-etl/internal/temporal/activities"
	"github.com/stanstork/stratum-etl/internal/temporal/workflows"
	"go.temporal.io/sdk/worker"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Host the batch workflow and its activities on Temporal",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.dialTemporal()
			if err != nil {
				return err
			}
			defer c.Close()

			w := worker.New(c, app.config.Temporal.TaskQueue, worker.Options{})
			w.RegisterWorkflow(workflows.BatchWorkflow)
			w.RegisterActivity(&activities.Activities{
				Runner:  app.runner,
				Sources: app.jobs,
			})

			app.logger.Info().Str("task_queue", app.config.Temporal.TaskQueue).Msg("Starting Temporal worker...")
			if err := w.Run(worker.InterruptCh()); err != nil {
				return errors.Wrap(err, "unable to start worker")
			}
			app.logger.Info().Msg("Temporal worker stopped.")
			return nil
		},
	}
}
