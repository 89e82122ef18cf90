package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
)

const dateLayout = time.DateOnly

type ExecutionRepository interface {
	// Upsert writes the record for (ExecutionDate, JobID) in one atomic statement.
	Upsert(ctx context.Context, exec models.Execution) error
	// NextEligible returns the next_exec_dt of the most recent record of jobID
	// dated before today with next_exec_dt after today, or nil.
	NextEligible(ctx context.Context, jobID int64, today time.Time) (*time.Time, error)
	// GetLatest returns the most recent record of jobID.
	GetLatest(ctx context.Context, jobID int64) (models.Execution, error)
}

type executionRepository struct {
	db *sqlx.DB
}

func NewExecutionRepository(db *sqlx.DB) ExecutionRepository {
	return &executionRepository{db: db}
}

const executionColumns = `execution_dt, srctbl_id, complete_track, rec_read_count, rec_load_count,
		recon_status, last_exec_dt, next_exec_dt, load_start_tm, load_end_tm, error_message`

const insertExecution = `
		INSERT INTO execution_track (` + executionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const upsertConflict = `
		ON CONFLICT (execution_dt, srctbl_id) DO UPDATE SET
			complete_track = excluded.complete_track,
			rec_read_count = excluded.rec_read_count,
			rec_load_count = excluded.rec_load_count,
			recon_status   = excluded.recon_status,
			last_exec_dt   = excluded.last_exec_dt,
			next_exec_dt   = excluded.next_exec_dt,
			load_start_tm  = excluded.load_start_tm,
			load_end_tm    = excluded.load_end_tm,
			error_message  = excluded.error_message
`

const upsertDuplicateKey = `
		ON DUPLICATE KEY UPDATE
			complete_track = VALUES(complete_track),
			rec_read_count = VALUES(rec_read_count),
			rec_load_count = VALUES(rec_load_count),
			recon_status   = VALUES(recon_status),
			last_exec_dt   = VALUES(last_exec_dt),
			next_exec_dt   = VALUES(next_exec_dt),
			load_start_tm  = VALUES(load_start_tm),
			load_end_tm    = VALUES(load_end_tm),
			error_message  = VALUES(error_message)
`

func (r *executionRepository) upsertQuery() string {
	if r.db.DriverName() == "mysql" {
		return r.db.Rebind(insertExecution + upsertDuplicateKey)
	}
	return r.db.Rebind(insertExecution + upsertConflict)
}

func (r *executionRepository) Upsert(ctx context.Context, exec models.Execution) error {
	_, err := r.db.ExecContext(ctx, r.upsertQuery(),
		exec.ExecutionDate.Format(dateLayout),
		exec.JobID,
		exec.Complete,
		exec.RecordsRead,
		exec.RecordsLoaded,
		exec.ReconStatus,
		exec.LastExecDate.Format(dateLayout),
		exec.NextExecDate.Format(dateLayout),
		exec.LoadStart,
		exec.LoadEnd,
		exec.ErrorMessage,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert execution for job %d on %s", exec.JobID, exec.ExecutionDate.Format(dateLayout))
	}
	return nil
}

func (r *executionRepository) NextEligible(ctx context.Context, jobID int64, today time.Time) (*time.Time, error) {
	query := r.db.Rebind(`
		SELECT next_exec_dt
		FROM execution_track
		WHERE srctbl_id = ?
		  AND next_exec_dt > ?
		  AND execution_dt < ?
		ORDER BY execution_dt DESC
		LIMIT 1
	`)

	day := today.Format(dateLayout)
	var next time.Time
	err := r.db.QueryRowxContext(ctx, query, jobID, day, day).Scan(&next)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read next eligible date for job %d", jobID)
	}
	return &next, nil
}

func (r *executionRepository) GetLatest(ctx context.Context, jobID int64) (models.Execution, error) {
	query := r.db.Rebind(`
		SELECT ` + executionColumns + `
		FROM execution_track
		WHERE srctbl_id = ?
		ORDER BY execution_dt DESC
		LIMIT 1
	`)

	var exec models.Execution
	err := r.db.GetContext(ctx, &exec, query, jobID)
	if err == sql.ErrNoRows {
		return exec, etlerr.New(etlerr.ErrNotFound, "no executions for job %d", jobID)
	}
	if err != nil {
		return exec, errors.Wrapf(err, "get latest execution for job %d", jobID)
	}
	return exec, nil
}

