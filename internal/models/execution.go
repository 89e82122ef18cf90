package models

import (
	"database/sql"
	"time"
)

// Reconciliation outcomes stored in execution_track.recon_status.
const (
	ReconMatch  = "MATCH"
	ReconFailed = "FAILED"
	ReconNA     = "NA"
)

// Execution is one row of execution_track, keyed by (execution_dt, srctbl_id).
type Execution struct {
	ExecutionDate time.Time      `json:"execution_dt" db:"execution_dt"`
	JobID         int64          `json:"srctbl_id" db:"srctbl_id"`
	Complete      string         `json:"complete_track" db:"complete_track"`
	RecordsRead   int64          `json:"rec_read_count" db:"rec_read_count"`
	RecordsLoaded int64          `json:"rec_load_count" db:"rec_load_count"`
	ReconStatus   string         `json:"recon_status" db:"recon_status"`
	LastExecDate  time.Time      `json:"last_exec_dt" db:"last_exec_dt"`
	NextExecDate  time.Time      `json:"next_exec_dt" db:"next_exec_dt"`
	LoadStart     sql.NullTime   `json:"load_start_tm" db:"load_start_tm"`
	LoadEnd       sql.NullTime   `json:"load_end_tm" db:"load_end_tm"`
	ErrorMessage  sql.NullString `json:"error_message" db:"error_message"`
}

// Completed reports whether the run finished successfully.
func (e Execution) Completed() bool {
	return e.Complete == "Y"
}
