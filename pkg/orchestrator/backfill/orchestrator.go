package backfill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

const moduleName = "backfill"

// DefaultDateParallelism bounds concurrently running dates per batch.
const DefaultDateParallelism = 3

// Runner is the slice of the execution engine the orchestrator drives.
type Runner interface {
	Execute(ctx context.Context, name string, jobs []model.JobConfig, opts engine.Options) (*model.Execution, error)
}

// Config tunes one backfill run. Parallelism bounds dates per batch and is
// independent of the engine's per-execution job parallelism carried in Engine.
type Config struct {
	TemplateID  string
	StartDate   time.Time
	EndDate     time.Time
	Interval    model.BackfillInterval
	Parallelism int
	Engine      engine.Options
}

// Orchestrator replays a job template across a date range.
type Orchestrator struct {
	runner   Runner
	repo     repository.BackfillRepository
	recorder metrics.MetricRecorder
}

// NewOrchestrator creates an Orchestrator over the given runner and repository.
func NewOrchestrator(runner Runner, repo repository.BackfillRepository, recorder metrics.MetricRecorder) *Orchestrator {
	return &Orchestrator{runner: runner, repo: repo, recorder: recorder}
}

// dateOutcome is one date's result collected from a batch.
type dateOutcome struct {
	result model.DateExecutionResult
	err    error
}

// Execute runs the template once per generated date. Dates are processed in
// strictly sequential batches of cfg.Parallelism; within a batch all dates
// run concurrently and a per-date failure never aborts its siblings. Tallies
// on the returned BackfillExecution are updated after every batch and
// persisted. The returned error aggregates per-date failures; the
// BackfillExecution is valid either way.
func (o *Orchestrator) Execute(ctx context.Context, templateName string, templateJobs []model.JobConfig, cfg Config) (*model.BackfillExecution, error) {
	dates, err := DateRange(cfg.StartDate, cfg.EndDate, cfg.Interval)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, exception.NewConfigError(moduleName, "date range is empty", templateName)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultDateParallelism
	}

	bf := model.NewBackfillExecution(cfg.TemplateID, templateName, cfg.StartDate, cfg.EndDate, cfg.Interval, len(dates))
	if err := o.repo.SaveBackfillExecution(ctx, bf); err != nil {
		return nil, err
	}
	logger.Infof("Backfill %s: template '%s', %d date(s), %d per batch.", bf.ID, templateName, len(dates), cfg.Parallelism)

	var merr *multierror.Error
	for offset := 0; offset < len(dates); offset += cfg.Parallelism {
		batch := dates[offset:min(offset+cfg.Parallelism, len(dates))]
		for _, oc := range o.runBatch(ctx, templateName, templateJobs, batch, cfg) {
			bf.Results = append(bf.Results, oc.result)
			if oc.err != nil {
				bf.FailedExecutions++
				merr = multierror.Append(merr, oc.err)
			} else {
				bf.CompletedExecutions++
			}
			if oc.result.ExecutionID != "" {
				bf.ExecutionIDs = append(bf.ExecutionIDs, oc.result.ExecutionID)
			}
			o.recorder.RecordBackfillDate(ctx, templateName, oc.err != nil)
		}
		if err := o.repo.UpdateBackfillExecution(ctx, bf); err != nil {
			logger.Errorf("Failed to persist backfill %s tallies: %v", bf.ID, err)
		}
	}

	bf.MarkFinished()
	if err := o.repo.UpdateBackfillExecution(ctx, bf); err != nil {
		logger.Errorf("Failed to persist final state of backfill %s: %v", bf.ID, err)
	}
	logger.Infof("Backfill %s finished with status %s (%d completed, %d failed).",
		bf.ID, bf.Status, bf.CompletedExecutions, bf.FailedExecutions)
	return bf, merr.ErrorOrNil()
}

// runBatch dispatches one batch of dates concurrently and returns outcomes
// in date order.
func (o *Orchestrator) runBatch(ctx context.Context, templateName string, templateJobs []model.JobConfig, batch []time.Time, cfg Config) []dateOutcome {
	outcomes := make([]dateOutcome, len(batch))
	var wg sync.WaitGroup
	for i, date := range batch {
		wg.Add(1)
		go func(i int, date time.Time) {
			defer wg.Done()
			outcomes[i] = o.runDate(ctx, templateName, templateJobs, date, cfg)
		}(i, date)
	}
	wg.Wait()
	return outcomes
}

// runDate hydrates and executes the template for a single date. Both an
// engine error and a failed final execution count as a failed date.
func (o *Orchestrator) runDate(ctx context.Context, templateName string, templateJobs []model.JobConfig, date time.Time, cfg Config) dateOutcome {
	jobs := HydrateJobs(templateJobs, date, cfg.Interval)
	name := fmt.Sprintf("%s [%s]", templateName, FormatDate(date, cfg.Interval))

	exec, err := o.runner.Execute(ctx, name, jobs, cfg.Engine)
	if err != nil {
		logger.Warnf("Backfill date %s of template '%s' failed: %v", date.Format("2006-01-02"), templateName, err)
		return dateOutcome{
			result: model.DateExecutionResult{Date: date, Status: model.ExecutionStatusFailed, Error: err.Error()},
			err:    err,
		}
	}
	result := model.DateExecutionResult{Date: date, ExecutionID: exec.ID, Status: exec.Status}
	if exec.Status != model.ExecutionStatusCompleted {
		result.Error = fmt.Sprintf("execution finished with status %s", exec.Status)
		return dateOutcome{result: result, err: fmt.Errorf("date %s: %s", date.Format("2006-01-02"), result.Error)}
	}
	return dateOutcome{result: result}
}
