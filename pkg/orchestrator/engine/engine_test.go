package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/registry"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/infrastructure/repository/inmemory"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

// invocationLog records handler dispatch order across goroutines.
type invocationLog struct {
	mu    sync.Mutex
	order []string
}

func (l *invocationLog) add(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, id)
}

func (l *invocationLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

func (l *invocationLog) indexOf(id string) int {
	for i, v := range l.snapshot() {
		if v == id {
			return i
		}
	}
	return -1
}

func (l *invocationLog) count(id string) int {
	n := 0
	for _, v := range l.snapshot() {
		if v == id {
			n++
		}
	}
	return n
}

// fakeTaker records checkpoint trigger firings.
type fakeTaker struct {
	mu    sync.Mutex
	calls []fakeTake
}

type fakeTake struct {
	executionID string
	trigger     model.CheckpointTrigger
	metadata    map[string]interface{}
}

func (f *fakeTaker) Take(_ context.Context, executionID, _ string, trigger model.CheckpointTrigger, metadata map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeTake{executionID: executionID, trigger: trigger, metadata: metadata})
	return model.NewID(), nil
}

func (f *fakeTaker) byTrigger(trigger model.CheckpointTrigger) []fakeTake {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeTake
	for _, c := range f.calls {
		if c.trigger == trigger {
			out = append(out, c)
		}
	}
	return out
}

// countingListener tallies listener callbacks.
type countingListener struct {
	mu                          sync.Mutex
	completed, failed, skipped  int
	lastProgress, lastTotal     int
}

func (c *countingListener) OnJobCompleted(_ context.Context, _ string, _ *model.JobState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
}

func (c *countingListener) OnJobFailed(_ context.Context, _ string, _ *model.JobState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed++
}

func (c *countingListener) OnJobSkipped(_ context.Context, _ string, _ *model.JobState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped++
}

func (c *countingListener) OnProgress(_ context.Context, _ string, completed, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastProgress = completed
	c.lastTotal = total
}

func newTestEngine(reg *registry.HandlerRegistry) (*engine.ExecutionEngine, *inmemory.Repository) {
	repo := inmemory.NewRepository()
	eng := engine.NewExecutionEngine(reg, repo, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer(), engine.Options{Parallelism: 3})
	return eng, repo
}

func okHandler(log *invocationLog, output model.JobOutput) func(ctx context.Context, job model.JobConfig) (model.JobOutput, error) {
	return func(_ context.Context, job model.JobConfig) (model.JobOutput, error) {
		if log != nil {
			log.add(job.ID)
		}
		return output, nil
	}
}

func job(id, typeName string, deps ...string) model.JobConfig {
	return model.JobConfig{ID: id, Name: "Job " + id, Type: typeName, DependsOn: deps}
}

func TestExecute_DependencyOrdering(t *testing.T) {
	log := &invocationLog{}
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(log, model.JobOutput{"ok": true}))
	eng, repo := newTestEngine(reg)

	// Diamond: a -> (b, c) -> d.
	exec, err := eng.Execute(context.Background(), "diamond", []model.JobConfig{
		job("a", "work"),
		job("b", "work", "a"),
		job("c", "work", "a"),
		job("d", "work", "b", "c"),
	}, engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusCompleted, exec.Status)
	for id, js := range exec.Jobs {
		assert.Equal(t, model.JobStatusCompleted, js.Status, "job %s", id)
		assert.NotNil(t, js.StartedAt)
		assert.NotNil(t, js.EndedAt)
	}

	order := log.snapshot()
	require.Len(t, order, 4)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "d", order[3])
	assert.Less(t, log.indexOf("b"), log.indexOf("d"))
	assert.Less(t, log.indexOf("c"), log.indexOf("d"))

	// The final record is persisted.
	persisted, err := repo.FindExecutionByID(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, persisted.Status)
	assert.NotNil(t, persisted.CompletedAt)
}

func TestExecute_ParallelismBound(t *testing.T) {
	var current, highWater atomic.Int32
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("slow", func(ctx context.Context, _ model.JobConfig) (model.JobOutput, error) {
		n := current.Add(1)
		for {
			hw := highWater.Load()
			if n <= hw || highWater.CompareAndSwap(hw, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		current.Add(-1)
		return nil, nil
	})
	eng, _ := newTestEngine(reg)

	jobs := []model.JobConfig{
		job("j1", "slow"), job("j2", "slow"), job("j3", "slow"),
		job("j4", "slow"), job("j5", "slow"), job("j6", "slow"),
	}
	exec, err := eng.Execute(context.Background(), "parallel", jobs, engine.Options{Parallelism: 2})
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusCompleted, exec.Status)
	assert.LessOrEqual(t, highWater.Load(), int32(2))
	// Six independent 30ms jobs with budget 2 should actually saturate it.
	assert.Equal(t, int32(2), highWater.Load())
}

func TestExecute_ConditionSkip(t *testing.T) {
	log := &invocationLog{}
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(log, model.JobOutput{"proceed": false}))
	eng, _ := newTestEngine(reg)

	var sawOutput bool
	jobs := []model.JobConfig{
		job("gate", "work"),
		{
			ID: "guarded", Name: "Guarded", Type: "work", DependsOn: []string{"gate"},
			Condition: func(outputs model.OutputAccessor) bool {
				out := outputs.GetJobOutput("gate")
				sawOutput = out != nil
				proceed, _ := out["proceed"].(bool)
				return proceed
			},
		},
		job("downstream", "work", "guarded"),
	}

	exec, err := eng.Execute(context.Background(), "conditional", jobs, engine.Options{})
	require.NoError(t, err)

	// The condition saw the gate's real output and vetoed dispatch.
	assert.True(t, sawOutput)
	assert.Equal(t, model.JobStatusSkipped, exec.Jobs["guarded"].Status)
	assert.Equal(t, true, exec.Jobs["guarded"].Output["skipped"])
	assert.Equal(t, 0, log.count("guarded"))

	// A skipped predecessor still releases its dependents.
	assert.Equal(t, model.JobStatusCompleted, exec.Jobs["downstream"].Status)
	assert.Equal(t, model.ExecutionStatusCompleted, exec.Status)
}

func TestExecute_ConditionReadsUnknownJobAsNil(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(nil, nil))
	eng, _ := newTestEngine(reg)

	var gateOutput model.JobOutput
	jobs := []model.JobConfig{
		job("other", "work"),
		{
			ID: "probe", Name: "Probe", Type: "work",
			Condition: func(outputs model.OutputAccessor) bool {
				gateOutput = outputs.GetJobOutput("missing")
				return true
			},
		},
	}
	_, err := eng.Execute(context.Background(), "probe", jobs, engine.Options{Parallelism: 1})
	require.NoError(t, err)
	assert.Nil(t, gateOutput)
}

func TestExecute_FailureIsolation(t *testing.T) {
	log := &invocationLog{}
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(log, nil))
	reg.RegisterFunc("explode", func(_ context.Context, _ model.JobConfig) (model.JobOutput, error) {
		return nil, errors.New("disk full")
	})
	eng, _ := newTestEngine(reg)

	// Two independent branches; only one fails.
	exec, err := eng.Execute(context.Background(), "branches", []model.JobConfig{
		job("a", "explode"),
		job("b", "work", "a"),
		job("x", "work"),
		job("y", "work", "x"),
	}, engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusFailed, exec.Status)
	assert.Equal(t, model.JobStatusFailed, exec.Jobs["a"].Status)
	assert.Contains(t, exec.Jobs["a"].Error, "disk full")

	// The dependent of the failed job is never dispatched and stays pending.
	assert.Equal(t, model.JobStatusPending, exec.Jobs["b"].Status)
	assert.Equal(t, 0, log.count("b"))

	// The sibling branch ran to completion.
	assert.Equal(t, model.JobStatusCompleted, exec.Jobs["x"].Status)
	assert.Equal(t, model.JobStatusCompleted, exec.Jobs["y"].Status)
}

func TestExecute_UnregisteredHandlerType(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(nil, nil))
	eng, _ := newTestEngine(reg)

	exec, err := eng.Execute(context.Background(), "unknown-type", []model.JobConfig{
		job("a", "work"),
		job("bad", "spark_submit"),
	}, engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusFailed, exec.Status)
	assert.Equal(t, model.JobStatusFailed, exec.Jobs["bad"].Status)
	assert.Contains(t, exec.Jobs["bad"].Error, "no handler registered for job type 'spark_submit'")
	assert.Equal(t, model.JobStatusCompleted, exec.Jobs["a"].Status)
}

func TestExecute_HandlerPanicIsContained(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(nil, nil))
	reg.RegisterFunc("panic", func(_ context.Context, _ model.JobConfig) (model.JobOutput, error) {
		panic("index out of range")
	})
	eng, _ := newTestEngine(reg)

	exec, err := eng.Execute(context.Background(), "panicky", []model.JobConfig{
		job("p", "panic"),
		job("x", "work"),
	}, engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusFailed, exec.Status)
	assert.Equal(t, model.JobStatusFailed, exec.Jobs["p"].Status)
	assert.Contains(t, exec.Jobs["p"].Error, "handler panicked")
	assert.Equal(t, model.JobStatusCompleted, exec.Jobs["x"].Status)
}

func TestExecute_ValidationErrors(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	eng, _ := newTestEngine(reg)

	_, err := eng.Execute(context.Background(), "bad", []model.JobConfig{
		job("a", "work", "ghost"),
	}, engine.Options{})
	assert.ErrorIs(t, err, exception.ErrConfig)

	_, err = eng.Execute(context.Background(), "cyclic", []model.JobConfig{
		job("a", "work", "b"),
		job("b", "work", "a"),
	}, engine.Options{})
	assert.ErrorIs(t, err, exception.ErrCycle)
}

func TestCancel_DrainsRunningAndCancelsPending(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("blocker", func(_ context.Context, _ model.JobConfig) (model.JobOutput, error) {
		close(started)
		<-release
		return model.JobOutput{"done": true}, nil
	})
	reg.RegisterFunc("work", okHandler(nil, nil))
	eng, _ := newTestEngine(reg)

	type result struct {
		exec *model.Execution
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		exec, err := eng.Execute(context.Background(), "cancellable", []model.JobConfig{
			job("a", "blocker"),
			job("b", "work", "a"),
			job("c", "work", "a"),
		}, engine.Options{})
		resCh <- result{exec, err}
	}()

	<-started
	live := eng.ListExecutions()
	require.Len(t, live, 1)
	require.NoError(t, eng.Cancel(live[0].ID))

	close(release)
	res := <-resCh
	require.NoError(t, res.err)

	assert.Equal(t, model.ExecutionStatusCancelled, res.exec.Status)
	// The in-flight handler drained naturally and kept its result.
	assert.Equal(t, model.JobStatusCompleted, res.exec.Jobs["a"].Status)
	assert.Equal(t, model.JobStatusCancelled, res.exec.Jobs["b"].Status)
	assert.Equal(t, model.JobStatusCancelled, res.exec.Jobs["c"].Status)
}

func TestCancel_Errors(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(nil, nil))
	eng, _ := newTestEngine(reg)

	assert.ErrorIs(t, eng.Cancel("no-such-execution"), exception.ErrNotFound)

	exec, err := eng.Execute(context.Background(), "done", []model.JobConfig{job("a", "work")}, engine.Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, eng.Cancel(exec.ID), exception.ErrCancellationRejected)
}

func TestExecute_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("ctx_aware", func(hctx context.Context, _ model.JobConfig) (model.JobOutput, error) {
		close(started)
		<-hctx.Done()
		return nil, hctx.Err()
	})
	reg.RegisterFunc("work", okHandler(nil, nil))
	eng, _ := newTestEngine(reg)

	go func() {
		<-started
		cancel()
	}()

	exec, err := eng.Execute(ctx, "interrupted", []model.JobConfig{
		job("a", "ctx_aware"),
		job("b", "work", "a"),
	}, engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusCancelled, exec.Status)
	assert.Equal(t, model.JobStatusFailed, exec.Jobs["a"].Status)
	assert.Equal(t, model.JobStatusCancelled, exec.Jobs["b"].Status)
}

func TestExecute_JobTimeout(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("sleepy", func(hctx context.Context, _ model.JobConfig) (model.JobOutput, error) {
		select {
		case <-time.After(5 * time.Second):
			return nil, nil
		case <-hctx.Done():
			return nil, hctx.Err()
		}
	})
	eng, _ := newTestEngine(reg)

	jc := job("slow", "sleepy")
	jc.TimeoutSeconds = 1
	start := time.Now()
	exec, err := eng.Execute(context.Background(), "timeout", []model.JobConfig{jc}, engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusFailed, exec.Status)
	assert.Equal(t, model.JobStatusFailed, exec.Jobs["slow"].Status)
	assert.Contains(t, exec.Jobs["slow"].Error, "context deadline exceeded")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestResume_SkipsSettledJobs(t *testing.T) {
	log := &invocationLog{}
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(log, model.JobOutput{"rows": 10}))
	eng, _ := newTestEngine(reg)

	jobs := []model.JobConfig{
		job("a", "work"),
		job("b", "work", "a"),
		job("c", "work", "b"),
	}

	// Snapshot taken mid-run: a completed, b was running, c untouched.
	state := model.JobStateMap{
		"a": {JobID: "a", Status: model.JobStatusCompleted, Output: model.JobOutput{"rows": 10}},
		"b": {JobID: "b", Status: model.JobStatusRunning},
		"c": {JobID: "c", Status: model.JobStatusPending},
	}
	cp := model.NewCheckpoint("old-exec", "mid-run", model.TriggerManual, state, nil)

	exec, err := eng.Resume(context.Background(), cp, jobs, engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusCompleted, exec.Status)
	assert.Contains(t, exec.Name, "(resumed)")

	// a was settled in the snapshot and is not re-executed; its output carries over.
	assert.Equal(t, 0, log.count("a"))
	assert.Equal(t, model.JobStatusCompleted, exec.Jobs["a"].Status)

	// b was mid-flight at snapshot time and re-executes from scratch.
	assert.Equal(t, 1, log.count("b"))
	assert.Equal(t, 1, log.count("c"))
	// The resumed run is a new execution, not a mutation of the old one.
	assert.NotEqual(t, "old-exec", exec.ID)
}

func TestResume_NilCheckpoint(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	eng, _ := newTestEngine(reg)
	_, err := eng.Resume(context.Background(), nil, []model.JobConfig{job("a", "work")}, engine.Options{})
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestCheckpointTriggers(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(nil, nil))
	eng, _ := newTestEngine(reg)

	taker := &fakeTaker{}
	eng.AttachCheckpointTaker(taker)

	critical := job("transform", "work", "extract")
	critical.Config = model.JobParams{"critical": true}

	exec, err := eng.Execute(context.Background(), "checkpointed", []model.JobConfig{
		job("extract", "work"),
		critical,
	}, engine.Options{
		Parallelism: 1,
		Checkpoint: engine.CheckpointPolicy{
			OnJobCompleted:   true,
			OnLevelCompleted: true,
			BeforeCritical:   true,
		},
	})
	require.NoError(t, err)
	require.Equal(t, model.ExecutionStatusCompleted, exec.Status)

	assert.Len(t, taker.byTrigger(model.TriggerJobCompleted), 2)

	// One level checkpoint per dependency level, each carrying its index.
	levels := taker.byTrigger(model.TriggerLevelCompleted)
	require.Len(t, levels, 2)
	assert.Equal(t, 0, levels[0].metadata["level"])
	assert.Equal(t, 1, levels[1].metadata["level"])

	// The before-critical snapshot names the job about to run.
	befores := taker.byTrigger(model.TriggerBeforeCritical)
	require.Len(t, befores, 1)
	assert.Equal(t, "transform", befores[0].metadata["jobId"])
	assert.Equal(t, exec.ID, befores[0].executionID)
}

func TestCheckpointTimeBasedTrigger(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("slow", func(_ context.Context, _ model.JobConfig) (model.JobOutput, error) {
		time.Sleep(120 * time.Millisecond)
		return nil, nil
	})
	eng, _ := newTestEngine(reg)

	taker := &fakeTaker{}
	eng.AttachCheckpointTaker(taker)

	_, err := eng.Execute(context.Background(), "timed", []model.JobConfig{job("a", "slow")}, engine.Options{
		Checkpoint: engine.CheckpointPolicy{Interval: 25 * time.Millisecond},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, taker.byTrigger(model.TriggerTimeBased))
}

func TestGetExecution(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(nil, nil))
	eng, _ := newTestEngine(reg)

	exec, err := eng.Execute(context.Background(), "lookup", []model.JobConfig{job("a", "work")}, engine.Options{})
	require.NoError(t, err)

	got, err := eng.GetExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, got.ID)
	assert.Equal(t, model.ExecutionStatusCompleted, got.Status)

	// Reads are detached copies; mutating them never touches engine state.
	got.Jobs["a"].Status = model.JobStatusPending
	again, err := eng.GetExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, again.Jobs["a"].Status)

	_, err = eng.GetExecution(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestListeners(t *testing.T) {
	reg := registry.NewHandlerRegistry()
	reg.RegisterFunc("work", okHandler(nil, nil))
	reg.RegisterFunc("explode", func(_ context.Context, _ model.JobConfig) (model.JobOutput, error) {
		return nil, errors.New("boom")
	})
	eng, _ := newTestEngine(reg)

	listener := &countingListener{}
	eng.AddListener(listener)

	skipped := job("skipped", "work")
	skipped.Condition = func(model.OutputAccessor) bool { return false }

	_, err := eng.Execute(context.Background(), "observed", []model.JobConfig{
		job("ok", "work"),
		job("bad", "explode"),
		skipped,
	}, engine.Options{})
	require.NoError(t, err)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	assert.Equal(t, 1, listener.completed)
	assert.Equal(t, 1, listener.failed)
	assert.Equal(t, 1, listener.skipped)
	assert.Equal(t, 3, listener.lastProgress)
	assert.Equal(t, 3, listener.lastTotal)
}
