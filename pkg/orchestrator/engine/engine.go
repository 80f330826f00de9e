// Package engine implements the execution engine: it walks a validated job
// graph in dependency order, dispatches ready jobs to registered handlers
// with bounded parallelism, evaluates per-job conditions, and records
// per-job and per-execution status.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/dag"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/registry"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

const moduleName = "engine"

// runState is the engine-private bookkeeping of one in-flight execution.
type runState struct {
	cancelRequested bool
}

// ExecutionEngine schedules job graphs onto handlers. All job-state mutation
// is serialized behind a single mutex; handler execution itself runs fully
// concurrently up to the parallelism bound.
type ExecutionEngine struct {
	registry *registry.HandlerRegistry
	repo     repository.ExecutionRepository
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	defaults Options

	mu         sync.Mutex
	executions map[string]*model.Execution
	runs       map[string]*runState
	listeners  []ExecutionListener
	taker      CheckpointTaker
}

// NewExecutionEngine creates an ExecutionEngine with the given collaborators.
func NewExecutionEngine(
	reg *registry.HandlerRegistry,
	repo repository.ExecutionRepository,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	defaults Options,
) *ExecutionEngine {
	return &ExecutionEngine{
		registry:   reg,
		repo:       repo,
		recorder:   recorder,
		tracer:     tracer,
		defaults:   defaults,
		executions: make(map[string]*model.Execution),
		runs:       make(map[string]*runState),
	}
}

// AddListener registers an observation hook. Listeners must be added before
// executions are submitted.
func (e *ExecutionEngine) AddListener(l ExecutionListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// AttachCheckpointTaker wires the checkpoint manager into the engine's
// automatic triggers. Without a taker, checkpoint policies are ignored.
func (e *ExecutionEngine) AttachCheckpointTaker(t CheckpointTaker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taker = t
}

// Execute runs the named job set to a terminal state and returns a detached
// copy of the final Execution. Validation errors (exception.ErrConfig,
// exception.ErrCycle) are returned before any job runs.
func (e *ExecutionEngine) Execute(ctx context.Context, name string, jobs []model.JobConfig, opts Options) (*model.Execution, error) {
	graph, err := dag.Build(jobs)
	if err != nil {
		return nil, err
	}
	exec := model.NewExecution(name, jobs)
	return e.run(ctx, exec, graph, opts)
}

// Resume constructs a new run seeded from a checkpoint's state: jobs that
// were completed or skipped at snapshot time are not re-executed; jobs that
// were running, failed or cancelled are reset to pending. The job list is
// re-validated before scheduling resumes.
func (e *ExecutionEngine) Resume(ctx context.Context, cp *model.Checkpoint, jobs []model.JobConfig, opts Options) (*model.Execution, error) {
	if cp == nil {
		return nil, exception.NewNotFoundError(moduleName, "checkpoint is nil", "")
	}
	graph, err := dag.Build(jobs)
	if err != nil {
		return nil, err
	}
	exec := model.NewExecution(fmt.Sprintf("%s (resumed)", cp.Name), jobs)
	for id, snap := range cp.State {
		if _, ok := exec.Jobs[id]; !ok {
			continue // job no longer part of the set
		}
		if snap.Status.SatisfiesDependency() {
			exec.Jobs[id] = snap.Clone()
		}
		// running/failed/cancelled snapshots stay pending and re-execute
	}
	logger.Infof("Resuming execution '%s' from checkpoint %s (%d of %d jobs already settled).",
		exec.Name, cp.ID, exec.TerminalCount(), graph.Size())
	return e.run(ctx, exec, graph, opts)
}

// GetExecution returns a detached copy of the execution, consulting live
// state first and the repository second. It never mutates state.
func (e *ExecutionEngine) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	e.mu.Lock()
	if exec, ok := e.executions[id]; ok {
		snapshot := exec.Clone()
		e.mu.Unlock()
		return snapshot, nil
	}
	e.mu.Unlock()
	exec, err := e.repo.FindExecutionByID(ctx, id)
	if err != nil {
		return nil, exception.NewNotFoundError(moduleName, "execution not found", id)
	}
	return exec, nil
}

// ListExecutions returns detached copies of all executions tracked in memory.
func (e *ExecutionEngine) ListExecutions() []*model.Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.Execution, 0, len(e.executions))
	for _, exec := range e.executions {
		out = append(out, exec.Clone())
	}
	return out
}

// Cancel requests cooperative cancellation of a live execution: no further
// pending jobs are dispatched, already-running handlers drain naturally, and
// the execution finishes as cancelled. Cancelling an execution already in a
// terminal state yields exception.ErrCancellationRejected.
func (e *ExecutionEngine) Cancel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[id]
	if !ok {
		return exception.NewNotFoundError(moduleName, "execution not found", id)
	}
	if exec.Status.IsTerminal() {
		return exception.NewCancellationRejectedError(moduleName, id, exec.Status.String())
	}
	if rs, ok := e.runs[id]; ok {
		rs.cancelRequested = true
	}
	logger.Infof("Cancellation requested for execution %s.", id)
	return nil
}

// SnapshotJobs returns a deep copy of a tracked execution's job map along
// with its name. It backs the checkpoint manager's view of live state.
func (e *ExecutionEngine) SnapshotJobs(executionID string) (model.JobStateMap, string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[executionID]
	if !ok {
		return nil, "", false
	}
	return exec.Jobs.Clone(), exec.Name, true
}

// run drives one execution to a terminal state.
func (e *ExecutionEngine) run(ctx context.Context, exec *model.Execution, graph *dag.Graph, opts Options) (*model.Execution, error) {
	opts = opts.withDefaults(e.defaults)

	e.mu.Lock()
	e.executions[exec.ID] = exec
	e.runs[exec.ID] = &runState{}
	taker := e.taker
	e.mu.Unlock()

	if err := e.repo.SaveExecution(ctx, exec.Clone()); err != nil {
		logger.Errorf("Failed to persist execution %s at start: %v", exec.ID, err)
	}
	e.recorder.RecordExecutionStart(ctx, exec)
	spanCtx, endSpan := e.tracer.StartExecutionSpan(ctx, exec)
	defer endSpan()

	e.schedule(spanCtx, exec, graph, opts, taker != nil)

	e.finalize(ctx, exec)

	e.mu.Lock()
	delete(e.runs, exec.ID)
	snapshot := exec.Clone()
	e.mu.Unlock()
	return snapshot, nil
}

// jobResult is one handler settlement delivered to the scheduling loop.
type jobResult struct {
	jobID    string
	jobType  string
	output   model.JobOutput
	err      error
	duration time.Duration
}

// schedule is the engine's single coordination path. It alternates between a
// dispatch phase (release every ready job up to the parallelism budget,
// skipping jobs whose condition is false) and a wait phase (block until a
// handler settles, the context is cancelled, or a time-based checkpoint
// fires). It returns once no job is pending or running, or once a requested
// cancellation has drained.
func (e *ExecutionEngine) schedule(ctx context.Context, exec *model.Execution, graph *dag.Graph, opts Options, checkpoints bool) {
	done := make(chan jobResult)
	running := 0
	total := graph.Size()
	checkpointedLevels := make(map[int]bool)

	var tick <-chan time.Time
	if checkpoints && opts.Checkpoint.Interval > 0 {
		ticker := time.NewTicker(opts.Checkpoint.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	ctxDone := ctx.Done()

	for {
		for e.dispatchOne(ctx, exec, graph, opts, &running, done, checkpoints, checkpointedLevels, total) {
		}
		if running == 0 {
			break
		}
		select {
		case res := <-done:
			running--
			e.settle(ctx, exec, graph, opts, res, checkpoints, checkpointedLevels, total)
		case <-ctxDone:
			ctxDone = nil
			e.mu.Lock()
			if rs, ok := e.runs[exec.ID]; ok {
				rs.cancelRequested = true
			}
			e.mu.Unlock()
			logger.Warnf("Context cancelled for execution %s; draining %d running job(s).", exec.ID, running)
		case <-tick:
			e.takeCheckpoint(ctx, exec.ID, model.TriggerTimeBased, nil)
		}
	}
}

// dispatchOne releases at most one job: the first pending job in input order
// whose dependencies are all satisfied. A false condition settles the job as
// skipped without consuming parallelism budget. Returns true when it made
// progress and the dispatch phase should run again.
func (e *ExecutionEngine) dispatchOne(
	ctx context.Context,
	exec *model.Execution,
	graph *dag.Graph,
	opts Options,
	running *int,
	done chan<- jobResult,
	checkpoints bool,
	checkpointedLevels map[int]bool,
	total int,
) bool {
	e.mu.Lock()
	if rs, ok := e.runs[exec.ID]; ok && rs.cancelRequested {
		e.mu.Unlock()
		return false
	}
	if *running >= opts.Parallelism {
		e.mu.Unlock()
		return false
	}

	var candidate model.JobConfig
	found := false
	for _, id := range graph.JobIDs() {
		js := exec.Jobs[id]
		if js.Status != model.JobStatusPending {
			continue
		}
		ready := true
		for _, dep := range graph.Dependencies(id) {
			if !exec.Jobs[dep].Status.SatisfiesDependency() {
				ready = false
				break
			}
		}
		if ready {
			candidate, _ = graph.Job(id)
			found = true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return false
	}

	js := exec.Jobs[candidate.ID]

	// Conditions are evaluated exactly once, only when every dependency is
	// terminal, against a read-only view of completed outputs.
	if candidate.Condition != nil && !candidate.Condition(stateOutputAccessor{jobs: exec.Jobs}) {
		js.MarkAsSkipped("condition evaluated to false")
		snapshot := js.Clone()
		completed := exec.TerminalCount()
		e.mu.Unlock()
		logger.Debugf("Job '%s' skipped by condition in execution %s.", candidate.ID, exec.ID)
		e.notifySkipped(ctx, exec.ID, snapshot, completed, total)
		if checkpoints {
			e.checkpointLevelIfDone(ctx, exec, graph, opts, candidate.ID, checkpointedLevels)
		}
		return true
	}
	e.mu.Unlock()

	// The before-critical trigger snapshots the state the critical job will
	// run against, so it must fire before the running transition.
	if checkpoints && opts.Checkpoint.BeforeCritical && candidate.Critical() {
		e.takeCheckpoint(ctx, exec.ID, model.TriggerBeforeCritical,
			map[string]interface{}{"jobId": candidate.ID})
	}

	e.mu.Lock()
	if rs, ok := e.runs[exec.ID]; ok && rs.cancelRequested {
		e.mu.Unlock()
		return false
	}
	js.MarkAsRunning()
	*running++
	e.mu.Unlock()

	e.recorder.RecordJobStart(ctx, exec.Name, candidate.Type)
	go e.invokeHandler(ctx, exec.ID, candidate, done)
	return true
}

// invokeHandler runs one handler off the coordination path and reports the
// settlement. A missing handler or a handler panic settles the job as failed
// without affecting sibling branches.
func (e *ExecutionEngine) invokeHandler(ctx context.Context, executionID string, job model.JobConfig, done chan<- jobResult) {
	jctx, endSpan := e.tracer.StartJobSpan(ctx, executionID, job)
	defer endSpan()

	start := time.Now()
	var output model.JobOutput
	var err error

	handler, lookupErr := e.registry.Lookup(job.Type)
	if lookupErr != nil {
		err = lookupErr
	} else {
		hctx := jctx
		if job.TimeoutSeconds > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(jctx, time.Duration(job.TimeoutSeconds)*time.Second)
			defer cancel()
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = exception.NewHandlerExecutionError(moduleName, job.ID, fmt.Errorf("handler panicked: %v", r))
				}
			}()
			output, err = handler.Execute(hctx, job)
		}()
	}

	if err != nil {
		e.tracer.RecordError(jctx, moduleName, err)
	}
	done <- jobResult{jobID: job.ID, jobType: job.Type, output: output, err: err, duration: time.Since(start)}
}

// settle applies one handler result, fires hooks, and evaluates the
// job-completed and level-completed checkpoint triggers.
func (e *ExecutionEngine) settle(
	ctx context.Context,
	exec *model.Execution,
	graph *dag.Graph,
	opts Options,
	res jobResult,
	checkpoints bool,
	checkpointedLevels map[int]bool,
	total int,
) {
	e.mu.Lock()
	js := exec.Jobs[res.jobID]
	if res.err != nil {
		err := res.err
		if exception.KindOf(err) == nil {
			err = exception.NewHandlerExecutionError(moduleName, res.jobID, err)
		}
		js.MarkAsFailed(err)
	} else {
		js.MarkAsCompleted(res.output)
	}
	snapshot := js.Clone()
	completed := exec.TerminalCount()
	e.mu.Unlock()

	e.recorder.RecordJobEnd(ctx, exec.Name, res.jobType, snapshot.Status, res.duration)

	if snapshot.Status == model.JobStatusFailed {
		logger.Warnf("Job '%s' failed in execution %s: %s", res.jobID, exec.ID, snapshot.Error)
		e.notifyFailed(ctx, exec.ID, snapshot, completed, total)
	} else {
		logger.Debugf("Job '%s' completed in execution %s (%d/%d).", res.jobID, exec.ID, completed, total)
		e.notifyCompleted(ctx, exec.ID, snapshot, completed, total)
		if checkpoints && opts.Checkpoint.OnJobCompleted {
			e.takeCheckpoint(ctx, exec.ID, model.TriggerJobCompleted,
				map[string]interface{}{"jobId": res.jobID})
		}
	}

	if checkpoints {
		e.checkpointLevelIfDone(ctx, exec, graph, opts, res.jobID, checkpointedLevels)
	}
}

// checkpointLevelIfDone fires the level-completed trigger once per level,
// when every job of the settled job's level has reached a terminal state.
func (e *ExecutionEngine) checkpointLevelIfDone(
	ctx context.Context,
	exec *model.Execution,
	graph *dag.Graph,
	opts Options,
	jobID string,
	checkpointedLevels map[int]bool,
) {
	if !opts.Checkpoint.OnLevelCompleted {
		return
	}
	level := graph.LevelOf(jobID)
	if level < 0 || checkpointedLevels[level] {
		return
	}
	e.mu.Lock()
	doneLevel := true
	for _, id := range graph.Levels()[level] {
		if !exec.Jobs[id].Status.IsTerminal() {
			doneLevel = false
			break
		}
	}
	e.mu.Unlock()
	if !doneLevel {
		return
	}
	checkpointedLevels[level] = true
	e.takeCheckpoint(ctx, exec.ID, model.TriggerLevelCompleted,
		map[string]interface{}{"level": level})
}

// takeCheckpoint invokes the attached taker, if any. Checkpoint failures are
// logged and never interrupt scheduling.
func (e *ExecutionEngine) takeCheckpoint(ctx context.Context, executionID string, trigger model.CheckpointTrigger, metadata map[string]interface{}) {
	e.mu.Lock()
	taker := e.taker
	e.mu.Unlock()
	if taker == nil {
		return
	}
	if _, err := taker.Take(ctx, executionID, "", trigger, metadata); err != nil {
		logger.Errorf("Automatic checkpoint (%s) failed for execution %s: %v", trigger, executionID, err)
	}
}

// finalize computes the terminal execution status, marks remaining pending
// jobs cancelled when a cancellation drained, and persists the final record.
// Dependents of a failed job deliberately stay pending.
func (e *ExecutionEngine) finalize(ctx context.Context, exec *model.Execution) {
	e.mu.Lock()
	cancelRequested := false
	if rs, ok := e.runs[exec.ID]; ok {
		cancelRequested = rs.cancelRequested
	}

	switch {
	case cancelRequested:
		for _, js := range exec.Jobs {
			if js.Status == model.JobStatusPending {
				js.MarkAsCancelled()
			}
		}
		exec.MarkFinished(model.ExecutionStatusCancelled)
	case exec.CountByStatus(model.JobStatusFailed) > 0:
		exec.MarkFinished(model.ExecutionStatusFailed)
	case exec.TerminalCount() == len(exec.Jobs):
		exec.MarkFinished(model.ExecutionStatusCompleted)
	default:
		// No failure, no cancellation, yet jobs remain pending: the graph
		// could make no further progress. Surface as failed.
		exec.MarkFinished(model.ExecutionStatusFailed)
	}
	snapshot := exec.Clone()
	e.mu.Unlock()

	e.recorder.RecordExecutionEnd(ctx, snapshot)
	logger.Infof("Execution %s ('%s') finished with status %s.", snapshot.ID, snapshot.Name, snapshot.Status)

	if err := e.repo.UpdateExecution(ctx, snapshot); err != nil {
		logger.Errorf("Failed to persist final state of execution %s: %v", exec.ID, err)
	}
}

func (e *ExecutionEngine) snapshotListeners() []ExecutionListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExecutionListener(nil), e.listeners...)
}

func (e *ExecutionEngine) notifyCompleted(ctx context.Context, executionID string, state *model.JobState, completed, total int) {
	for _, l := range e.snapshotListeners() {
		l.OnJobCompleted(ctx, executionID, state)
		l.OnProgress(ctx, executionID, completed, total)
	}
}

func (e *ExecutionEngine) notifyFailed(ctx context.Context, executionID string, state *model.JobState, completed, total int) {
	for _, l := range e.snapshotListeners() {
		l.OnJobFailed(ctx, executionID, state)
		l.OnProgress(ctx, executionID, completed, total)
	}
}

func (e *ExecutionEngine) notifySkipped(ctx context.Context, executionID string, state *model.JobState, completed, total int) {
	for _, l := range e.snapshotListeners() {
		l.OnJobSkipped(ctx, executionID, state)
		l.OnProgress(ctx, executionID, completed, total)
	}
}
