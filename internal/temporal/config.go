package temporal

import "time"

// DefaultTaskQueue is used when temporal.task_queue is not configured.
const DefaultTaskQueue = "ETL_BATCH"

// BatchWorkflowIDPrefix prefixes the workflow id of every batch run.
const BatchWorkflowIDPrefix = "etl-batch-"

// DefaultInvocationTimeout bounds one data source pass when the batch does not say.
const DefaultInvocationTimeout = 10 * time.Minute

// BatchParams is the input of the batch workflow. An empty DataSourceIDs
// runs every data source in the metadata store.
type BatchParams struct {
	RunID             string
	DataSourceIDs     []int64
	Pause             time.Duration
	InvocationTimeout time.Duration
}

// WorkflowID returns the id a batch run is started under.
func WorkflowID(runID string) string {
	return BatchWorkflowIDPrefix + runID
}
