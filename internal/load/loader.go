// Package load writes adapted tables into target databases with full
// replace semantics.
package load

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/dataset"
	"github.com/stanstork/stratum-etl/internal/dialect"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/schema"
)

// StagingSuffix names the table rows are written to before the swap.
const StagingSuffix = "__stg"

const cleanupTimeout = 30 * time.Second

// Target is a writable SQL database.
type Target interface {
	DB() *sqlx.DB
	Dialect() dialect.SQLDialect
}

type Loader struct {
	batchSize int
	logger    zerolog.Logger
}

func New(batchSize int, logger zerolog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Loader{
		batchSize: batchSize,
		logger:    logger.With().Str("component", "loader").Logger(),
	}
}

// Load replaces the target table with t and returns the number of rows
// written. Rows go to a staging table first; the existing table is only
// dropped once every row is in. A table without columns is not loaded.
func (l *Loader) Load(ctx context.Context, target Target, name schema.TargetName, t *dataset.Table) (int64, error) {
	if len(t.Columns) == 0 {
		l.logger.Info().Str("table", name.String()).Msg("No columns in result set, nothing to load")
		return 0, nil
	}

	db, d := target.DB(), target.Dialect()
	staging := StagingName(d, name.Table)

	if err := dropIfExists(ctx, db, d, name.Schema, staging); err != nil {
		return 0, etlerr.Wrap(etlerr.ErrLoad, err, "clear staging table %s", staging)
	}
	if _, err := db.ExecContext(ctx, d.CreateTable(name.Schema, staging, t.Columns)); err != nil {
		return 0, etlerr.Wrap(etlerr.ErrLoad, err, "create staging table %s", staging)
	}

	loaded, err := l.insert(ctx, db, d, name.Schema, staging, t)
	if err == nil {
		err = swap(ctx, db, d, name.Schema, staging, name.Table)
	}
	if err != nil {
		l.discard(ctx, db, d, name.Schema, staging)
		return 0, etlerr.Wrap(etlerr.ErrLoad, err, "load %s", name)
	}

	l.logger.Info().Str("table", name.String()).Int64("rows", loaded).Msg("Table replaced")
	return loaded, nil
}

// StagingName returns the staging table for table. When the plain suffix
// would push the name past the dialect's identifier limit, the table name is
// cut and a hash of it kept, so the staging name never truncates to the
// target's own name.
func StagingName(d dialect.SQLDialect, table string) string {
	name := table + StagingSuffix
	limit := d.MaxIdentifier()
	if limit <= 0 || len(name) <= limit {
		return name
	}

	h := fnv.New32a()
	h.Write([]byte(table))
	suffix := fmt.Sprintf("_%08x%s", h.Sum32(), StagingSuffix)

	prefix := table[:max(limit-len(suffix), 0)]
	for !utf8.ValidString(prefix) {
		prefix = prefix[:len(prefix)-1]
	}
	return prefix + suffix
}

func (l *Loader) rowsPerStatement(d dialect.SQLDialect, cols int) int {
	n := l.batchSize
	if limit := d.MaxParams() / cols; limit < n {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (l *Loader) insert(ctx context.Context, db *sqlx.DB, d dialect.SQLDialect, schemaName, table string, t *dataset.Table) (int64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cols := t.ColumnNames()
	for i, c := range cols {
		cols[i] = d.Quote(c)
	}
	prefix := "INSERT INTO " + d.Table(schemaName, table) + " (" + strings.Join(cols, ", ") + ") VALUES "
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	chunk := l.rowsPerStatement(d, len(cols))
	var loaded int64
	for start := 0; start < len(t.Rows); start += chunk {
		end := min(start+chunk, len(t.Rows))
		rows := t.Rows[start:end]

		tuples := make([]string, len(rows))
		args := make([]any, 0, len(rows)*len(cols))
		for i, row := range rows {
			tuples[i] = tuple
			args = append(args, row...)
		}

		query := tx.Rebind(prefix + strings.Join(tuples, ", "))
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			loaded += n
		} else {
			loaded += int64(len(rows))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return loaded, nil
}

func swap(ctx context.Context, db *sqlx.DB, d dialect.SQLDialect, schemaName, staging, table string) error {
	if err := dropIfExists(ctx, db, d, schemaName, table); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, d.RenameTable(schemaName, staging, table))
	return err
}

// discard drops the staging table on a context that outlives cancellation.
func (l *Loader) discard(ctx context.Context, db *sqlx.DB, d dialect.SQLDialect, schemaName, staging string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := dropIfExists(cleanupCtx, db, d, schemaName, staging); err != nil {
		l.logger.Warn().Err(err).Str("table", staging).Msg("Failed to drop staging table")
	}
}

func dropIfExists(ctx context.Context, db *sqlx.DB, d dialect.SQLDialect, schemaName, table string) error {
	_, err := db.ExecContext(ctx, d.DropTable(schemaName, table))
	if err != nil && d.MissingTable(err) {
		return nil
	}
	return err
}
