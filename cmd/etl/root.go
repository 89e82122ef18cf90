package main

import (
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// configDir overrides where config.yaml is looked up.
var configDir string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "etl <datasrc_id>",
		Short: "Metadata-driven table loads between databases and HTTP sources",
		Long: `etl runs the jobs registered for a data source: it checks each job's
schedule, extracts the source, replaces the target table and records the
outcome in execution_track.`,
		Args:          dataSourceArg,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()
			return nil
		},
		RunE: runDataSource,
	}
	root.PersistentFlags().StringVar(&configDir, "config", "", "directory holding config.yaml (default . and ./config)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newRunCommand(),
		newBatchCommand(),
		newServeCommand(),
		newWorkerCommand(),
		newMigrateCommand(),
		newSecretCommand(),
	)
	return root
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <datasrc_id>",
		Short: "Run one pass over a data source's jobs",
		Args:  dataSourceArg,
		RunE:  runDataSource,
	}
}

// dataSourceArg requires exactly one positive integer.
func dataSourceArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageError{errors.Errorf("expected one data source id, got %d arguments", len(args))}
	}
	if _, err := parseDataSourceID(args[0]); err != nil {
		return usageError{err}
	}
	return nil
}

func parseDataSourceID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("data source id must be a positive integer, got %q", s)
	}
	return id, nil
}

func runDataSource(cmd *cobra.Command, args []string) error {
	id, err := parseDataSourceID(args[0])
	if err != nil {
		return usageError{err}
	}

	app, err := newApplication(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	stat, err := app.runner.RunDataSource(cmd.Context(), id)
	if err != nil {
		return errors.Wrapf(err, "run data source %d", id)
	}
	app.logger.Info().
		Int64("datasrc_id", id).
		Int("succeeded", stat.Succeeded).
		Int("failed", stat.Failed).
		Int("skipped", stat.Skipped).
		Msg("Pass complete")
	return nil
}
