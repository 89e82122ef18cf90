// Package engine runs the jobs of one data source from guard check to
// execution record.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/connector"
	"github.com/stanstork/stratum-etl/internal/dataset"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/load"
	"github.com/stanstork/stratum-etl/internal/metrics"
	"github.com/stanstork/stratum-etl/internal/models"
	"github.com/stanstork/stratum-etl/internal/schedule"
	"github.com/stanstork/stratum-etl/internal/schema"
	"github.com/stanstork/stratum-etl/internal/tracker"
)

type JobStore interface {
	GetDataSource(ctx context.Context, dataSourceID int64) (models.DataSource, error)
	ListActiveJobs(ctx context.Context, dataSourceID int64) ([]models.Job, error)
}

type Guard interface {
	ShouldSkip(ctx context.Context, jobID int64, today time.Time) (bool, *time.Time, error)
}

type CredentialResolver interface {
	Resolve(ctx context.Context, dbType, roleHint string) (models.Credential, error)
}

type Connector interface {
	Open(ctx context.Context, cred models.Credential) (connector.Handle, error)
}

type Extractor interface {
	Extract(ctx context.Context, job models.Job, h connector.Handle) (*dataset.Table, error)
}

type Adapter interface {
	Adapt(t *dataset.Table, source connector.Kind) *dataset.Table
}

type Loader interface {
	Load(ctx context.Context, target load.Target, name schema.TargetName, t *dataset.Table) (int64, error)
}

type Tracker interface {
	MarkOutcome(ctx context.Context, o tracker.Outcome) (time.Time, error)
	MarkFailure(ctx context.Context, jobID int64, reason string, start, end time.Time) error
}

// Deps are the stages a runner drives.
type Deps struct {
	Jobs        JobStore
	Guard       Guard
	Credentials CredentialResolver
	Connectors  Connector
	Extractor   Extractor
	Adapter     Adapter
	Loader      Loader
	Tracker     Tracker
}

type Option func(*Runner)

// WithClock replaces the clock that decides "today".
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithJobTimeout bounds each job; zero means no bound.
func WithJobTimeout(d time.Duration) Option {
	return func(r *Runner) { r.jobTimeout = d }
}

// WithTargetLocks shares target serialisation with other runners.
func WithTargetLocks(l *TargetLocks) Option {
	return func(r *Runner) { r.locks = l }
}

// WithTargetRole sets the role hint used for target credentials.
func WithTargetRole(role string) Option {
	return func(r *Runner) { r.targetRole = role }
}

type Runner struct {
	deps       Deps
	locks      *TargetLocks
	targetRole string
	jobTimeout time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

func NewRunner(deps Deps, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		deps:       deps,
		targetRole: "target",
		now:        time.Now,
		logger:     logger.With().Str("component", "runner").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.locks == nil {
		r.locks = NewTargetLocks()
	}
	return r
}

// RunDataSource runs every active job of the data source in order. Job
// failures are recorded and counted; only a failure to read the job list
// is returned.
func (r *Runner) RunDataSource(ctx context.Context, dataSourceID int64) (models.RunStat, error) {
	stat := models.RunStat{DataSourceID: dataSourceID}
	started := r.now()
	logger := r.logger.With().Int64("datasrc_id", dataSourceID).Logger()

	src, err := r.deps.Jobs.GetDataSource(ctx, dataSourceID)
	if err != nil {
		return stat, err
	}
	jobs, err := r.deps.Jobs.ListActiveJobs(ctx, dataSourceID)
	if err != nil {
		return stat, err
	}
	logger.Info().Str("source_nm", src.Name.String).Int("jobs", len(jobs)).Msg("Starting data source pass")

	for _, job := range jobs {
		if ctx.Err() != nil {
			logger.Warn().Err(ctx.Err()).Msg("Pass cancelled, remaining jobs left for the next run")
			break
		}
		stat.Add(r.RunJob(ctx, src, job))
	}

	stat.Duration = r.now().Sub(started)
	logger.Info().
		Int("succeeded", stat.Succeeded).
		Int("failed", stat.Failed).
		Int("skipped", stat.Skipped).
		Dur("duration", stat.Duration).
		Msg("Data source pass finished")
	return stat, nil
}

// RunJob takes one job through guard, extraction, load and tracking. It
// never returns an error: failures are recorded on the execution record.
func (r *Runner) RunJob(ctx context.Context, src models.DataSource, job models.Job) models.JobResult {
	logger := r.logger.With().
		Int64("datasrc_id", src.ID).
		Int64("job_id", job.ID).
		Str("source", job.SrcDatabase+":"+job.SourceName()).
		Str("target", job.TgtDatabase).
		Logger()
	result := models.JobResult{JobID: job.ID}
	today := schedule.Truncate(r.now())

	if !job.Active() {
		logger.Info().Str("active_ind", job.ActiveInd.String).Msg("Skipping inactive job")
		metrics.JobsTotal.WithLabelValues(string(models.JobSkipped), "").Inc()
		result.Status = models.JobSkipped
		return result
	}

	skip, next, err := r.deps.Guard.ShouldSkip(ctx, job.ID, today)
	if err != nil {
		return r.fail(ctx, logger, result, err, time.Time{})
	}
	if skip {
		logger.Info().Str("next_exec_dt", schedule.DateString(*next)).Msg("Skipping job, not yet eligible")
		metrics.JobsTotal.WithLabelValues(string(models.JobSkipped), "").Inc()
		result.Status = models.JobSkipped
		result.NextExecDate = next
		return result
	}

	start := r.now()
	read, loaded, err := r.execute(ctx, logger, src, job, today)
	if err != nil {
		return r.fail(ctx, logger, result, err, start)
	}
	end := r.now()

	nextRun, err := r.deps.Tracker.MarkOutcome(ctx, tracker.Outcome{
		JobID:         job.ID,
		Frequency:     job.FrequencyCode(),
		RecordsRead:   read,
		RecordsLoaded: loaded,
		Reconcile:     job.RequiresReconciliation(),
		Start:         start,
		End:           end,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to record execution")
		result.Status = models.JobFailed
		result.Error = err.Error()
		metrics.JobsTotal.WithLabelValues(string(models.JobFailed), "tracker").Inc()
		return result
	}

	metrics.JobsTotal.WithLabelValues(string(models.JobSucceeded), "").Inc()
	metrics.JobDuration.WithLabelValues(string(models.JobSucceeded)).Observe(end.Sub(start).Seconds())
	metrics.RowsLoaded.Add(float64(loaded))

	result.Status = models.JobSucceeded
	result.RecordsRead = read
	result.RecordsLoaded = loaded
	result.NextExecDate = &nextRun
	return result
}

func (r *Runner) execute(ctx context.Context, logger zerolog.Logger, src models.DataSource, job models.Job, today time.Time) (read, loaded int64, err error) {
	if r.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.jobTimeout)
		defer cancel()
		defer func() {
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && etlerr.KindOf(err) != etlerr.ErrTimeout {
				err = etlerr.Wrap(etlerr.ErrTimeout, err, "job exceeded %s", r.jobTimeout)
			}
		}()
	}

	srcCred, err := r.deps.Credentials.Resolve(ctx, job.SrcDatabase, src.Name.String)
	if err != nil {
		return 0, 0, err
	}
	tgtCred, err := r.deps.Credentials.Resolve(ctx, job.TgtDatabase, r.targetRole)
	if err != nil {
		return 0, 0, err
	}

	source, err := r.deps.Connectors.Open(ctx, srcCred)
	if err != nil {
		return 0, 0, err
	}
	defer closeHandle(logger, source)

	tgtHandle, err := r.deps.Connectors.Open(ctx, tgtCred)
	if err != nil {
		return 0, 0, err
	}
	defer closeHandle(logger, tgtHandle)

	target, ok := tgtHandle.(*connector.SQLHandle)
	if !ok {
		return 0, 0, etlerr.New(etlerr.ErrUnsupportedType, "target %s is not a relational database", tgtHandle.Kind())
	}
	name := schema.ResolveTarget(job, source.Kind(), today)

	table, err := r.deps.Extractor.Extract(ctx, job, source)
	if err != nil {
		return 0, 0, err
	}
	read = int64(table.Len())
	logger.Info().Int64("rows", read).Str("table", name.String()).Msg("Extracted")

	adapted := r.deps.Adapter.Adapt(table, source.Kind())

	unlock := r.locks.Lock(target.Identity() + "|" + name.String())
	defer unlock()

	loaded, err = r.deps.Loader.Load(ctx, target, name, adapted)
	if err != nil {
		return read, 0, err
	}
	return read, loaded, nil
}

func (r *Runner) fail(ctx context.Context, logger zerolog.Logger, result models.JobResult, err error, start time.Time) models.JobResult {
	kind := etlerr.Label(err)
	logger.Error().Err(err).Str("kind", kind).Msg("Job failed")

	if markErr := r.deps.Tracker.MarkFailure(context.WithoutCancel(ctx), result.JobID, err.Error(), start, r.now()); markErr != nil {
		logger.Error().Err(markErr).Msg("Failed to record job failure")
	}

	metrics.JobsTotal.WithLabelValues(string(models.JobFailed), kind).Inc()
	if !start.IsZero() {
		metrics.JobDuration.WithLabelValues(string(models.JobFailed)).Observe(r.now().Sub(start).Seconds())
	}
	result.Status = models.JobFailed
	result.Error = err.Error()
	return result
}

func closeHandle(logger zerolog.Logger, h connector.Handle) {
	if err := h.Close(); err != nil {
		logger.Warn().Err(err).Str("handle", h.Kind().String()).Msg("Failed to close connection")
	}
}
