package migration

import (
	"database/sql"
	"embed"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Embed SQL files from the local migrations folder
//
//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// dialects maps database/sql driver names to goose dialect names.
var dialects = map[string]string{
	"postgres": "postgres",
	"mysql":    "mysql",
	"sqlite3":  "sqlite3",
}

// RunMigrations brings the metadata store schema up to date.
func RunMigrations(db *sql.DB, driver string, logger zerolog.Logger) error {
	dialect, ok := dialects[driver]
	if !ok {
		return errors.Errorf("no migration dialect for driver %q", driver)
	}

	goose.SetBaseFS(embeddedMigrations)
	goose.SetLogger(NewGooseAdapter(logger))
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return errors.Wrap(err, "read schema version")
	}
	logger.Info().Int64("version", version).Msg("Migrations completed successfully")
	return nil
}
