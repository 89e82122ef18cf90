// Package activities hosts the batch activities on a worker.
package activities

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stanstork/stratum-etl/internal/models"
	"go.temporal.io/sdk/activity"
)

type DataSourceRunner interface {
	RunDataSource(ctx context.Context, dataSourceID int64) (models.RunStat, error)
}

type DataSourceLister interface {
	ListDataSources(ctx context.Context) ([]models.DataSource, error)
}

type Activities struct {
	Runner  DataSourceRunner
	Sources DataSourceLister
}

// ListDataSourcesActivity returns the ids of every data source, in id order.
func (a *Activities) ListDataSourcesActivity(ctx context.Context) ([]int64, error) {
	sources, err := a.Sources.ListDataSources(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list data sources")
	}
	ids := make([]int64, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	return ids, nil
}

// RunDataSourceActivity runs one pass over a data source.
func (a *Activities) RunDataSourceActivity(ctx context.Context, dataSourceID int64) (models.RunStat, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running data source pass", "datasrc_id", dataSourceID)

	stat, err := a.Runner.RunDataSource(ctx, dataSourceID)
	if err != nil {
		logger.Error("Data source pass failed", "datasrc_id", dataSourceID, "error", err)
		return stat, errors.Wrapf(err, "pass for data source %d", dataSourceID)
	}
	logger.Info("Data source pass finished",
		"datasrc_id", dataSourceID, "succeeded", stat.Succeeded, "failed", stat.Failed, "skipped", stat.Skipped)
	return stat, nil
}
