package backfill_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/backfill"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/infrastructure/repository/inmemory"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

// fakeRunner stands in for the execution engine. Each call runs briefly so
// batch concurrency is observable; failures are keyed by a job-id prefix
// found in the hydrated set.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []fakeCall
	current   atomic.Int32
	highWater atomic.Int32

	failNames map[string]bool // execution name -> hard engine error
	failExecs map[string]bool // execution name -> execution finishes failed
}

type fakeCall struct {
	name string
	jobs []model.JobConfig
}

func (f *fakeRunner) Execute(_ context.Context, name string, jobs []model.JobConfig, _ engine.Options) (*model.Execution, error) {
	n := f.current.Add(1)
	for {
		hw := f.highWater.Load()
		if n <= hw || f.highWater.CompareAndSwap(hw, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	f.current.Add(-1)

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{name: name, jobs: jobs})
	f.mu.Unlock()

	if f.failNames[name] {
		return nil, errors.New("engine rejected the job set")
	}
	exec := model.NewExecution(name, jobs)
	if f.failExecs[name] {
		exec.MarkFinished(model.ExecutionStatusFailed)
	} else {
		exec.MarkFinished(model.ExecutionStatusCompleted)
	}
	return exec, nil
}

func (f *fakeRunner) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.name)
	}
	return out
}

func newBackfillFixture(runner *fakeRunner) (*backfill.Orchestrator, *inmemory.Repository) {
	repo := inmemory.NewRepository()
	return backfill.NewOrchestrator(runner, repo, metrics.NewNoOpMetricRecorder()), repo
}

func template() []model.JobConfig {
	return []model.JobConfig{
		{ID: "extract", Name: "Extract {{ISO_DATE}}", Type: "echo"},
		{ID: "load", Name: "Load", Type: "echo", DependsOn: []string{"extract"}},
	}
}

func backfillConfig(start, end time.Time, parallelism int) backfill.Config {
	return backfill.Config{
		TemplateID:  model.NewID(),
		StartDate:   start,
		EndDate:     end,
		Interval:    model.IntervalDay,
		Parallelism: parallelism,
	}
}

func TestBackfill_AllDatesSucceed(t *testing.T) {
	runner := &fakeRunner{}
	orch, repo := newBackfillFixture(runner)

	bf, err := orch.Execute(context.Background(), "nightly", template(),
		backfillConfig(day(2025, 1, 1), day(2025, 1, 5), 2))
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusCompleted, bf.Status)
	assert.Equal(t, 5, bf.TotalExecutions)
	assert.Equal(t, 5, bf.CompletedExecutions)
	assert.Equal(t, 0, bf.FailedExecutions)
	assert.Len(t, bf.ExecutionIDs, 5)
	assert.Len(t, bf.Results, 5)
	assert.NotNil(t, bf.CompletedAt)

	// One engine run per date, named after the template and the date token.
	names := runner.names()
	require.Len(t, names, 5)
	assert.Contains(t, names, "nightly [20250101]")
	assert.Contains(t, names, "nightly [20250105]")

	// The final record is persisted.
	stored, err := repo.FindBackfillExecutionByID(context.Background(), bf.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, stored.Status)
}

func TestBackfill_BatchParallelismBound(t *testing.T) {
	runner := &fakeRunner{}
	orch, _ := newBackfillFixture(runner)

	_, err := orch.Execute(context.Background(), "nightly", template(),
		backfillConfig(day(2025, 1, 1), day(2025, 1, 6), 2))
	require.NoError(t, err)
	assert.LessOrEqual(t, runner.highWater.Load(), int32(2))
	assert.Equal(t, int32(2), runner.highWater.Load())
}

func TestBackfill_JobsAreHydratedPerDate(t *testing.T) {
	runner := &fakeRunner{}
	orch, _ := newBackfillFixture(runner)

	_, err := orch.Execute(context.Background(), "nightly", template(),
		backfillConfig(day(2025, 1, 1), day(2025, 1, 2), 1))
	require.NoError(t, err)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.calls, 2)
	seen := map[string]bool{}
	for _, c := range runner.calls {
		require.Len(t, c.jobs, 2)
		seen[c.jobs[0].ID] = true
		// Dependencies follow the per-date id rewrite.
		assert.Equal(t, []string{c.jobs[0].ID}, c.jobs[1].DependsOn)
	}
	assert.True(t, seen["extract_20250101"])
	assert.True(t, seen["extract_20250102"])
}

func TestBackfill_FailedDateDoesNotAbortSiblings(t *testing.T) {
	runner := &fakeRunner{
		failNames: map[string]bool{"nightly [20250102]": true},
		failExecs: map[string]bool{"nightly [20250104]": true},
	}
	orch, _ := newBackfillFixture(runner)

	bf, err := orch.Execute(context.Background(), "nightly", template(),
		backfillConfig(day(2025, 1, 1), day(2025, 1, 5), 2))

	// Failures are aggregated, not fatal; every date still ran.
	require.Error(t, err)
	require.NotNil(t, bf)
	assert.Len(t, runner.names(), 5)

	assert.Equal(t, model.ExecutionStatusFailed, bf.Status)
	assert.Equal(t, 3, bf.CompletedExecutions)
	assert.Equal(t, 2, bf.FailedExecutions)
	// The hard engine error produced no execution id; the failed run did.
	assert.Len(t, bf.ExecutionIDs, 4)

	require.Len(t, bf.Results, 5)
	byDate := map[string]model.DateExecutionResult{}
	for _, r := range bf.Results {
		byDate[r.Date.Format("2006-01-02")] = r
	}
	assert.Equal(t, model.ExecutionStatusFailed, byDate["2025-01-02"].Status)
	assert.Contains(t, byDate["2025-01-02"].Error, "engine rejected")
	assert.Empty(t, byDate["2025-01-02"].ExecutionID)
	assert.Equal(t, model.ExecutionStatusFailed, byDate["2025-01-04"].Status)
	assert.NotEmpty(t, byDate["2025-01-04"].ExecutionID)
	assert.Equal(t, model.ExecutionStatusCompleted, byDate["2025-01-01"].Status)
}

func TestBackfill_EmptyRange(t *testing.T) {
	runner := &fakeRunner{}
	orch, _ := newBackfillFixture(runner)

	_, err := orch.Execute(context.Background(), "nightly", template(),
		backfillConfig(day(2025, 2, 1), day(2025, 1, 1), 1))
	assert.ErrorIs(t, err, exception.ErrConfig)
	assert.Empty(t, runner.names())
}

func TestBackfill_InvalidInterval(t *testing.T) {
	runner := &fakeRunner{}
	orch, _ := newBackfillFixture(runner)

	cfg := backfillConfig(day(2025, 1, 1), day(2025, 1, 5), 1)
	cfg.Interval = model.BackfillInterval("quarter")
	_, err := orch.Execute(context.Background(), "nightly", template(), cfg)
	assert.ErrorIs(t, err, exception.ErrConfig)
}
