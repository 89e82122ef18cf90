package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
)

type JobRepository interface {
	// ListActiveJobs returns the data source's jobs whose active flag is unset or Y.
	ListActiveJobs(ctx context.Context, dataSourceID int64) ([]models.Job, error)
	GetDataSource(ctx context.Context, dataSourceID int64) (models.DataSource, error)
	ListDataSources(ctx context.Context) ([]models.DataSource, error)
}

type jobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) ListActiveJobs(ctx context.Context, dataSourceID int64) ([]models.Job, error) {
	query := r.db.Rebind(`
		SELECT srctbl_id, datasrc_id, src_database, src_schema, src_tablename,
		       tgt_database, tgt_schema, tgt_tablename, ref_frqncy, select_query,
		       recon_req, trg_table_sfx, load_type, active_ind
		FROM srctbl_info
		WHERE datasrc_id = ?
		  AND (active_ind IS NULL OR active_ind = '' OR UPPER(active_ind) = 'Y')
		ORDER BY srctbl_id
	`)

	jobs := []models.Job{}
	if err := r.db.SelectContext(ctx, &jobs, query, dataSourceID); err != nil {
		return nil, errors.Wrapf(err, "list jobs for data source %d", dataSourceID)
	}
	return jobs, nil
}

func (r *jobRepository) GetDataSource(ctx context.Context, dataSourceID int64) (models.DataSource, error) {
	query := r.db.Rebind(`
		SELECT source_id, source_nm, source_typ, extrct_mthd
		FROM source_info
		WHERE source_id = ?
	`)

	var src models.DataSource
	err := r.db.GetContext(ctx, &src, query, dataSourceID)
	if err == sql.ErrNoRows {
		return src, etlerr.New(etlerr.ErrNotFound, "data source %d", dataSourceID)
	}
	if err != nil {
		return src, errors.Wrapf(err, "get data source %d", dataSourceID)
	}
	return src, nil
}

func (r *jobRepository) ListDataSources(ctx context.Context) ([]models.DataSource, error) {
	sources := []models.DataSource{}
	err := r.db.SelectContext(ctx, &sources, `
		SELECT source_id, source_nm, source_typ, extrct_mthd
		FROM source_info
		ORDER BY source_id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list data sources")
	}
	return sources, nil
}
