package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_UsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"abc"},
		{"0"},
		{"1", "2"},
		{"run"},
		{"run", "-3"},
		{"batch", "x"},
		{"--no-such-flag", "1"},
	} {
		t.Run(fmt.Sprint(args), func(t *testing.T) {
			assert.Equal(t, exitUsage, run(args))
		})
	}
}

func TestRun_MissingMetadataStoreIsFatal(t *testing.T) {
	t.Setenv("ETL_METADATA_DSN", "")
	assert.Equal(t, exitFatal, run([]string{"--config", t.TempDir(), "7"}))
}

func writeConfig(t *testing.T, dsn string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf("metadata:\n  driver: sqlite3\n  dsn: %q\nlog:\n  level: error\n  console: false\n", dsn)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o600))
	return dir
}

type passFixture struct {
	cfgDir  string
	meta    *sqlx.DB
	tgtPath string
}

// newPassFixture migrates a SQLite metadata store and registers one daily
// job copying orders from a source file to a target file.
func newPassFixture(t *testing.T) passFixture {
	t.Helper()
	dir := t.TempDir()
	metaPath := filepath.Join(dir, "meta.db")
	srcPath := filepath.Join(dir, "src.db")
	tgtPath := filepath.Join(dir, "tgt.db")
	cfgDir := writeConfig(t, metaPath)

	require.Equal(t, exitOK, run([]string{"migrate", "--config", cfgDir}))

	src, err := sqlx.Open("sqlite3", srcPath)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	src.MustExec(`CREATE TABLE orders (id INTEGER, total REAL)`)
	src.MustExec(`INSERT INTO orders VALUES (1, 9.5), (2, 12.0)`)

	meta, err := sqlx.Open("sqlite3", metaPath)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })
	meta.MustExec(`INSERT INTO source_info (source_id, source_nm) VALUES (1, 'shop')`)
	meta.MustExec(`INSERT INTO database_cred (id, db_type, db_role, host, port, db_name, username, password)
		VALUES (1, 'sqlite', 'source_shop', '', 0, ?, '', ''), (2, 'sqlite3', 'target', '', 0, ?, '', '')`, srcPath, tgtPath)
	meta.MustExec(`INSERT INTO srctbl_info (srctbl_id, datasrc_id, src_database, src_tablename, tgt_database, tgt_tablename, ref_frqncy)
		VALUES (1, 1, 'sqlite', 'orders', 'sqlite3', 'INFER_SRC', 'DAILY')`)

	return passFixture{cfgDir: cfgDir, meta: meta, tgtPath: tgtPath}
}

func TestRun_MigrateThenPass(t *testing.T) {
	f := newPassFixture(t)

	assert.Equal(t, exitOK, run([]string{"--config", f.cfgDir, "1"}))

	var complete string
	require.NoError(t, f.meta.Get(&complete, `SELECT complete_track FROM execution_track WHERE srctbl_id = 1`))
	assert.Equal(t, "Y", complete)

	tgt, err := sqlx.Open("sqlite3", f.tgtPath)
	require.NoError(t, err)
	defer tgt.Close()
	var count int
	require.NoError(t, tgt.Get(&count, `SELECT COUNT(*) FROM orders`))
	assert.Equal(t, 2, count)

	// an unknown data source is a fatal error, not a silent pass
	assert.Equal(t, exitFatal, run([]string{"--config", f.cfgDir, "run", "42"}))
}

func TestRun_JobTimeoutFromConfig(t *testing.T) {
	f := newPassFixture(t)
	t.Setenv("ETL_ENGINE_JOB_TIMEOUT", "1ns")

	assert.Equal(t, exitOK, run([]string{"--config", f.cfgDir, "run", "1"}))

	var rec struct {
		Complete string `db:"complete_track"`
		Error    string `db:"error_message"`
	}
	require.NoError(t, f.meta.Get(&rec, `SELECT complete_track, error_message FROM execution_track WHERE srctbl_id = 1`))
	assert.Equal(t, "N", rec.Complete)
	assert.Contains(t, rec.Error, "timeout")
}
