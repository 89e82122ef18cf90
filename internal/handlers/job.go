package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
	"github.com/stanstork/stratum-etl/internal/schedule"
)

type ExecutionReader interface {
	GetLatest(ctx context.Context, jobID int64) (models.Execution, error)
}

type ScheduleGuard interface {
	ShouldSkip(ctx context.Context, jobID int64, today time.Time) (bool, *time.Time, error)
}

type JobHandler struct {
	executions ExecutionReader
	guard      ScheduleGuard
	now        func() time.Time
	logger     zerolog.Logger
}

func NewJobHandler(executions ExecutionReader, guard ScheduleGuard, logger zerolog.Logger) *JobHandler {
	return &JobHandler{
		executions: executions,
		guard:      guard,
		now:        time.Now,
		logger:     logger,
	}
}

// GetLatestExecution returns the job's most recent execution record.
func (h *JobHandler) GetLatestExecution(w http.ResponseWriter, r *http.Request) {
	jobID, ok := idVar(r, "jobID")
	if !ok {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	exec, err := h.executions.GetLatest(r.Context(), jobID)
	if errors.Is(err, etlerr.ErrNotFound) {
		http.Error(w, "No executions recorded for job", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("job_id", jobID).Msg("Failed to read execution")
		http.Error(w, "Failed to read execution", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

type scheduleResponse struct {
	JobID        int64   `json:"srctbl_id"`
	Date         string  `json:"date"`
	Skip         bool    `json:"skip"`
	NextExecDate *string `json:"next_exec_dt,omitempty"`
}

// GetSchedule reports whether the job would be skipped if run today.
func (h *JobHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	jobID, ok := idVar(r, "jobID")
	if !ok {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	today := schedule.Truncate(h.now())
	skip, next, err := h.guard.ShouldSkip(r.Context(), jobID, today)
	if err != nil {
		h.logger.Error().Err(err).Int64("job_id", jobID).Msg("Failed to evaluate schedule")
		http.Error(w, "Failed to evaluate schedule", http.StatusInternalServerError)
		return
	}

	resp := scheduleResponse{JobID: jobID, Date: schedule.DateString(today), Skip: skip}
	if next != nil {
		s := schedule.DateString(*next)
		resp.NextExecDate = &s
	}
	writeJSON(w, http.StatusOK, resp)
}
