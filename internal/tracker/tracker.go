// Package tracker records the outcome of every job run in execution_track.
package tracker

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/models"
	"github.com/stanstork/stratum-etl/internal/schedule"
)

// MaxErrorLength bounds the failure reason stored on a record.
const MaxErrorLength = 1000

// Store is the write path into execution history.
type Store interface {
	Upsert(ctx context.Context, exec models.Execution) error
}

// Outcome describes a successful run.
type Outcome struct {
	JobID         int64
	Frequency     string
	RecordsRead   int64
	RecordsLoaded int64
	Reconcile     bool
	Start         time.Time
	End           time.Time
}

// ReconStatus compares read and load counts when reconciliation is requested.
func (o Outcome) ReconStatus() string {
	switch {
	case !o.Reconcile:
		return models.ReconNA
	case o.RecordsRead == o.RecordsLoaded:
		return models.ReconMatch
	default:
		return models.ReconFailed
	}
}

type Tracker struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

func New(store Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "tracker").Logger(),
	}
}

// WithClock replaces the clock used to date records.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// MarkOutcome records today's run as complete and returns the date the job
// becomes eligible again.
func (t *Tracker) MarkOutcome(ctx context.Context, o Outcome) (time.Time, error) {
	today := schedule.Truncate(t.now())
	next := schedule.NextRun(today, o.Frequency)

	exec := models.Execution{
		ExecutionDate: today,
		JobID:         o.JobID,
		Complete:      "Y",
		RecordsRead:   o.RecordsRead,
		RecordsLoaded: o.RecordsLoaded,
		ReconStatus:   o.ReconStatus(),
		LastExecDate:  today,
		NextExecDate:  next,
		LoadStart:     nullTime(o.Start),
		LoadEnd:       nullTime(o.End),
	}
	if err := t.store.Upsert(ctx, exec); err != nil {
		return time.Time{}, err
	}

	t.logger.Info().
		Int64("job_id", o.JobID).
		Int64("rec_read_count", o.RecordsRead).
		Int64("rec_load_count", o.RecordsLoaded).
		Str("recon_status", exec.ReconStatus).
		Str("next_exec_dt", schedule.DateString(next)).
		Msg("Execution recorded")
	return next, nil
}

// MarkFailure records today's run as failed. The next eligible date stays
// today so a rerun is never blocked.
func (t *Tracker) MarkFailure(ctx context.Context, jobID int64, reason string, start, end time.Time) error {
	today := schedule.Truncate(t.now())
	if len(reason) > MaxErrorLength {
		reason = reason[:MaxErrorLength]
	}

	exec := models.Execution{
		ExecutionDate: today,
		JobID:         jobID,
		Complete:      "N",
		ReconStatus:   models.ReconNA,
		LastExecDate:  today,
		NextExecDate:  today,
		LoadStart:     nullTime(start),
		LoadEnd:       nullTime(end),
		ErrorMessage:  sql.NullString{String: reason, Valid: reason != ""},
	}
	if err := t.store.Upsert(ctx, exec); err != nil {
		return err
	}

	t.logger.Warn().Int64("job_id", jobID).Str("reason", reason).Msg("Execution marked as failed")
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
