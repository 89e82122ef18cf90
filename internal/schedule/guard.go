package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// HistoryReader is the single read path the guard uses on execution history.
type HistoryReader interface {
	// NextEligible returns the next-eligible date of the most recent execution
	// record of jobID dated before today whose next-eligible date is after
	// today, or nil when there is none.
	NextEligible(ctx context.Context, jobID int64, today time.Time) (*time.Time, error)
}

// Guard decides from execution history whether a job may run today.
type Guard struct {
	history HistoryReader
	logger  zerolog.Logger
}

func NewGuard(history HistoryReader, logger zerolog.Logger) *Guard {
	return &Guard{
		history: history,
		logger:  logger.With().Str("component", "schedule_guard").Logger(),
	}
}

// ShouldSkip reports whether jobID must be skipped today and, if so, the date
// it becomes eligible again. A run already recorded for today never blocks a
// manual rerun on the same day.
func (g *Guard) ShouldSkip(ctx context.Context, jobID int64, today time.Time) (bool, *time.Time, error) {
	next, err := g.history.NextEligible(ctx, jobID, Truncate(today))
	if err != nil {
		return false, nil, err
	}
	if next == nil {
		return false, nil, nil
	}
	g.logger.Debug().Int64("job_id", jobID).Str("next_exec_dt", DateString(*next)).Msg("job not yet eligible")
	return true, next, nil
}
