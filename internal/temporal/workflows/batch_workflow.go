package workflows

import (
	"time"

	"github.com/stanstork/stratum-etl/internal/models"
	etltemporal "github.com/stanstork/stratum-etl/internal/temporal"
	"github.com/stanstork/stratum-etl/internal/temporal/activities"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// BatchWorkflow runs one pass per data source, one after the other with a
// pause in between. A failed pass is recorded in the summary and the batch
// moves on; passes are never retried within a batch.
func BatchWorkflow(ctx workflow.Context, params etltemporal.BatchParams) (models.BatchSummary, error) {
	timeout := params.InvocationTimeout
	if timeout <= 0 {
		timeout = etltemporal.DefaultInvocationTimeout
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	logger := workflow.GetLogger(ctx)
	started := workflow.Now(ctx)
	summary := models.BatchSummary{RunID: params.RunID}

	// The actual implementation is on the worker; this is just a proxy.
	var a *activities.Activities

	ids := params.DataSourceIDs
	if len(ids) == 0 {
		if err := workflow.ExecuteActivity(ctx, a.ListDataSourcesActivity).Get(ctx, &ids); err != nil {
			logger.Error("Failed to list data sources.", "error", err)
			return summary, err
		}
	}
	summary.Sources = len(ids)
	logger.Info("Starting batch", "RunID", params.RunID, "sources", len(ids))

	for i, id := range ids {
		if i > 0 && params.Pause > 0 {
			if err := workflow.Sleep(ctx, params.Pause); err != nil {
				return summary, err
			}
		}

		var stat models.RunStat
		err := workflow.ExecuteActivity(ctx, a.RunDataSourceActivity, id).Get(ctx, &stat)
		if err != nil {
			logger.Error("Data source pass failed.", "datasrc_id", id, "error", err)
		}
		summary.Fold(id, stat, err)
	}

	summary.Duration = workflow.Now(ctx).Sub(started).Round(time.Millisecond)
	logger.Info("Batch completed.", "RunID", params.RunID, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}
