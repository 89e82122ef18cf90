// Package worker drives batch passes over several data sources with a
// bounded pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// RunFunc performs one pass over a data source.
type RunFunc func(ctx context.Context, dataSourceID int64) (models.RunStat, error)

type Config struct {
	// Concurrency is the number of passes in flight at once.
	Concurrency int
	// Pause is the minimum spacing between two pass launches.
	Pause time.Duration
	// InvocationTimeout bounds a single pass; zero means no bound.
	InvocationTimeout time.Duration
}

// Result is the outcome of one pass.
type Result struct {
	DataSourceID int64
	Stat         models.RunStat
	Err          error
	Duration     time.Duration
}

type Pool struct {
	cfg    Config
	run    RunFunc
	logger zerolog.Logger
}

func NewPool(cfg Config, run RunFunc, logger zerolog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pool{
		cfg:    cfg,
		run:    run,
		logger: logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Run starts a pass per data source and streams the results. The channel is
// closed once every pass has finished. A failing pass never cancels the
// others and is not retried.
func (p *Pool) Run(ctx context.Context, dataSourceIDs []int64) <-chan Result {
	results := make(chan Result, len(dataSourceIDs))

	limit := rate.Inf
	if p.cfg.Pause > 0 {
		limit = rate.Every(p.cfg.Pause)
	}
	limiter := rate.NewLimiter(limit, 1)

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	go func() {
		defer close(results)
		for i, id := range dataSourceIDs {
			if err := limiter.Wait(ctx); err != nil {
				for _, skipped := range dataSourceIDs[i:] {
					results <- Result{DataSourceID: skipped, Err: etlerr.Wrap(etlerr.ErrTimeout, err, "batch stopped before data source %d", skipped)}
				}
				break
			}
			id := id
			g.Go(func() error {
				results <- p.invoke(ctx, id)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return results
}

func (p *Pool) invoke(ctx context.Context, id int64) (res Result) {
	logger := p.logger.With().Int64("datasrc_id", id).Logger()
	started := time.Now()
	res.DataSourceID = id

	if p.cfg.InvocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.InvocationTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Pass panicked")
			res.Err = fmt.Errorf("pass for data source %d panicked: %v", id, r)
		}
		res.Duration = time.Since(started)
	}()

	logger.Info().Msg("Starting pass")
	res.Stat, res.Err = p.run(ctx, id)
	if res.Err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Err = etlerr.New(etlerr.ErrTimeout, "pass for data source %d exceeded %s", id, p.cfg.InvocationTimeout)
	}

	if res.Err != nil {
		logger.Error().Err(res.Err).Msg("Pass failed")
	} else {
		logger.Info().Int("succeeded", res.Stat.Succeeded).Int("failed", res.Stat.Failed).Int("skipped", res.Stat.Skipped).Msg("Pass finished")
	}
	return res
}

// RunBatch runs every data source and folds the results into a summary.
func (p *Pool) RunBatch(ctx context.Context, runID string, dataSourceIDs []int64) models.BatchSummary {
	started := time.Now()
	summary := models.BatchSummary{RunID: runID, Sources: len(dataSourceIDs)}

	for res := range p.Run(ctx, dataSourceIDs) {
		summary.Fold(res.DataSourceID, res.Stat, res.Err)
	}

	summary.Duration = time.Since(started)
	p.logger.Info().
		Str("run_id", runID).
		Int("sources", summary.Sources).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("jobs_failed", summary.JobsFailed).
		Dur("duration", summary.Duration).
		Msg("Batch finished")
	return summary
}
