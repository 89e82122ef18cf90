package extract

import (
	"context"
	"strings"

	"github.com/stanstork/stratum-etl/internal/connector"
	"github.com/stanstork/stratum-etl/internal/dataset"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
)

// SelectQuery is the statement a SQL extraction runs: the job's own query
// verbatim, or a full read of the source table.
func SelectQuery(job models.Job, h *connector.SQLHandle) string {
	if q, ok := job.CustomQuery(); ok {
		return q
	}
	return "SELECT * FROM " + h.Dialect().Table(strings.TrimSpace(job.SrcSchema.String), strings.TrimSpace(job.SrcTable))
}

func (e *Extractor) fromSQL(ctx context.Context, job models.Job, h *connector.SQLHandle) (*dataset.Table, error) {
	query := SelectQuery(job, h)

	rows, err := h.DB().QueryxContext(ctx, query)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConnection, err, "query %s", job.SourceName())
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrProtocol, err, "read columns of %s", job.SourceName())
	}
	names := make([]string, len(types))
	decimal := make([]bool, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
		switch strings.ToUpper(ct.DatabaseTypeName()) {
		case "DECIMAL", "NUMERIC", "NEWDECIMAL":
			decimal[i] = true
		}
	}

	table := dataset.New(names...)
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, etlerr.Wrap(etlerr.ErrConnection, err, "scan %s", job.SourceName())
		}
		for i, v := range vals {
			vals[i] = dataset.Normalize(v)
			if decimal[i] {
				vals[i] = dataset.ParseDecimal(vals[i])
			}
		}
		table.Rows = append(table.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConnection, err, "read %s", job.SourceName())
	}

	e.logger.Debug().Int64("job_id", job.ID).Int("rows", table.Len()).Msg("Extracted from SQL source")
	return table, nil
}
