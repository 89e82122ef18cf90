package models

import (
	"fmt"
	"time"
)

// JobStatus is the outcome of one job within a pass.
type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobSkipped   JobStatus = "skipped"
)

// JobResult records what happened to one job during a pass.
type JobResult struct {
	JobID         int64      `json:"srctbl_id"`
	Status        JobStatus  `json:"status"`
	RecordsRead   int64      `json:"rec_read_count"`
	RecordsLoaded int64      `json:"rec_load_count"`
	NextExecDate  *time.Time `json:"next_exec_dt,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// RunStat summarises one pass over a data source's jobs.
type RunStat struct {
	DataSourceID int64         `json:"datasrc_id"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	Duration     time.Duration `json:"duration"`
	Jobs         []JobResult   `json:"jobs"`
}

// Add folds a job result into the totals.
func (s *RunStat) Add(r JobResult) {
	switch r.Status {
	case JobSucceeded:
		s.Succeeded++
	case JobFailed:
		s.Failed++
	case JobSkipped:
		s.Skipped++
	}
	s.Jobs = append(s.Jobs, r)
}

// BatchSummary aggregates the passes of one batch over several data sources.
// Succeeded and Failed count passes; the Jobs* fields count jobs.
type BatchSummary struct {
	RunID         string        `json:"run_id"`
	Sources       int           `json:"sources"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	JobsSucceeded int           `json:"jobs_succeeded"`
	JobsFailed    int           `json:"jobs_failed"`
	JobsSkipped   int           `json:"jobs_skipped"`
	Duration      time.Duration `json:"duration"`
	Errors        []string      `json:"errors,omitempty"`
}

// Fold adds one pass to the summary.
func (b *BatchSummary) Fold(dataSourceID int64, stat RunStat, err error) {
	b.JobsSucceeded += stat.Succeeded
	b.JobsFailed += stat.Failed
	b.JobsSkipped += stat.Skipped
	if err != nil {
		b.Failed++
		b.Errors = append(b.Errors, fmt.Sprintf("data source %d: %v", dataSourceID, err))
		return
	}
	b.Succeeded++
}
