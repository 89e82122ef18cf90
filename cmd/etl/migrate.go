package main

import (
	"github.com/spf13/cobra"
	"github.com/stanstork/stratum-etl/internal/migration"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply metadata store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			return migration.RunMigrations(app.db.DB, app.config.Metadata.Driver, app.logger)
		},
	}
}
