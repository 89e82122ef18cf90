// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/migration"
)

// NewMetadataDB returns a migrated in-memory SQLite metadata store.
func NewMetadataDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db := NewSQLiteDB(t)
	if err := migration.RunMigrations(db.DB, "sqlite3", zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// NewSQLiteDB returns an empty in-memory SQLite database. The pool is pinned
// to one connection since every :memory: connection is a separate database.
func NewSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// SeedDataSource inserts a row into source_info.
func SeedDataSource(t *testing.T, db *sqlx.DB, id int64, name string) {
	t.Helper()
	db.MustExec(`INSERT INTO source_info (source_id, source_nm) VALUES (?, ?)`, id, name)
}

// SeedCredential inserts a row into database_cred.
func SeedCredential(t *testing.T, db *sqlx.DB, id int64, dbType, role, host string, port int, dbName, user, password string) {
	t.Helper()
	db.MustExec(`
		INSERT INTO database_cred (id, db_type, db_role, host, port, db_name, username, password)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, dbType, role, host, port, dbName, user, password)
}

// JobRow describes a srctbl_info row; empty optional strings become NULL.
type JobRow struct {
	ID           int64
	DataSourceID int64
	SrcDatabase  string
	SrcSchema    string
	SrcTable     string
	TgtDatabase  string
	TgtSchema    string
	TgtTable     string
	Frequency    string
	SelectQuery  string
	ReconReq     string
	TableSuffix  string
	ActiveInd    string
}

// SeedJob inserts a row into srctbl_info.
func SeedJob(t *testing.T, db *sqlx.DB, j JobRow) {
	t.Helper()
	db.MustExec(`
		INSERT INTO srctbl_info (srctbl_id, datasrc_id, src_database, src_schema, src_tablename,
			tgt_database, tgt_schema, tgt_tablename, ref_frqncy, select_query, recon_req,
			trg_table_sfx, active_ind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.DataSourceID, j.SrcDatabase, nullable(j.SrcSchema), j.SrcTable,
		j.TgtDatabase, nullable(j.TgtSchema), j.TgtTable, nullable(j.Frequency),
		nullable(j.SelectQuery), nullable(j.ReconReq), nullable(j.TableSuffix), nullable(j.ActiveInd))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
