package models

import (
	"database/sql"
	"strings"
)

// InferSource in a target schema or table column means "reuse the source name".
const InferSource = "INFER_SRC"

// DateSuffixDirective in trg_table_sfx appends today's date to the target table.
const DateSuffixDirective = "YYYYMMDD"

// DataSource is one row of source_info.
type DataSource struct {
	ID         int64          `json:"source_id" db:"source_id"`
	Name       sql.NullString `json:"source_nm" db:"source_nm"`
	Type       sql.NullString `json:"source_typ" db:"source_typ"`
	ExtractMth sql.NullString `json:"extrct_mthd" db:"extrct_mthd"`
}

// Job is one row of srctbl_info: a source-to-target data movement.
type Job struct {
	ID           int64          `json:"srctbl_id" db:"srctbl_id"`
	DataSourceID int64          `json:"datasrc_id" db:"datasrc_id"`
	SrcDatabase  string         `json:"src_database" db:"src_database"`
	SrcSchema    sql.NullString `json:"src_schema" db:"src_schema"`
	SrcTable     string         `json:"src_tablename" db:"src_tablename"`
	TgtDatabase  string         `json:"tgt_database" db:"tgt_database"`
	TgtSchema    sql.NullString `json:"tgt_schema" db:"tgt_schema"`
	TgtTable     string         `json:"tgt_tablename" db:"tgt_tablename"`
	Frequency    sql.NullString `json:"ref_frqncy" db:"ref_frqncy"`
	SelectQuery  sql.NullString `json:"select_query" db:"select_query"`
	ReconReq     sql.NullString `json:"recon_req" db:"recon_req"`
	TableSuffix  sql.NullString `json:"trg_table_sfx" db:"trg_table_sfx"`
	LoadType     sql.NullString `json:"load_type" db:"load_type"`
	ActiveInd    sql.NullString `json:"active_ind" db:"active_ind"`
}

// Active reports whether the engine may process the job: the flag is unset or Y.
func (j Job) Active() bool {
	return !j.ActiveInd.Valid || strings.TrimSpace(j.ActiveInd.String) == "" ||
		strings.EqualFold(strings.TrimSpace(j.ActiveInd.String), "Y")
}

// CustomQuery returns the job's extraction query, if one is defined.
func (j Job) CustomQuery() (string, bool) {
	q := strings.TrimSpace(j.SelectQuery.String)
	return q, j.SelectQuery.Valid && q != ""
}

// RequiresReconciliation reports whether read and load counts must be compared.
func (j Job) RequiresReconciliation() bool {
	switch strings.ToUpper(strings.TrimSpace(j.ReconReq.String)) {
	case "1", "Y", "YES", "TRUE":
		return true
	}
	return false
}

// FrequencyCode defaults to DAILY when unset.
func (j Job) FrequencyCode() string {
	if f := strings.TrimSpace(j.Frequency.String); f != "" {
		return f
	}
	return "DAILY"
}

// SourceName is "schema.table", or just the table when no schema is set.
func (j Job) SourceName() string {
	if s := strings.TrimSpace(j.SrcSchema.String); s != "" {
		return s + "." + j.SrcTable
	}
	return j.SrcTable
}
