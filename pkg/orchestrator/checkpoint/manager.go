// Package checkpoint snapshots the job state of live executions so that a
// run can later resume without repeating settled work. Snapshots are
// immutable once taken: the manager deep-copies state both on capture and on
// read.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

const moduleName = "checkpoint"

// Tracker exposes live execution state to the manager. The execution engine
// implements it; the indirection keeps this package free of an engine import.
type Tracker interface {
	// SnapshotJobs returns a deep copy of the execution's job map and its
	// name, or ok=false when the execution is not tracked.
	SnapshotJobs(executionID string) (model.JobStateMap, string, bool)
}

// Manager creates and serves checkpoints.
type Manager struct {
	tracker  Tracker
	repo     repository.CheckpointRepository
	recorder MetricSink
	clock    func() time.Time
}

// MetricSink is the slice of the metric recorder the manager needs.
type MetricSink interface {
	RecordCheckpoint(ctx context.Context, trigger model.CheckpointTrigger)
}

// NewManager creates a Manager over the given tracker and repository.
func NewManager(tracker Tracker, repo repository.CheckpointRepository, recorder MetricSink) *Manager {
	return &Manager{
		tracker:  tracker,
		repo:     repo,
		recorder: recorder,
		clock:    time.Now,
	}
}

// Create snapshots the named execution's current job state. The execution
// must be tracked live by the engine; checkpointing an unknown execution
// yields exception.ErrNotFound. An empty name is derived from the trigger.
func (m *Manager) Create(ctx context.Context, executionID, name string, trigger model.CheckpointTrigger, metadata map[string]interface{}) (*model.Checkpoint, error) {
	jobs, execName, ok := m.tracker.SnapshotJobs(executionID)
	if !ok {
		return nil, exception.NewNotFoundError(moduleName, "execution is not tracked", executionID)
	}
	if name == "" {
		name = fmt.Sprintf("%s @ %s", trigger, m.clock().UTC().Format(time.RFC3339))
	}
	cp := model.NewCheckpoint(executionID, name, trigger, jobs, metadata)
	cp.ExecutionName = execName
	if err := m.repo.SaveCheckpoint(ctx, cp); err != nil {
		return nil, err
	}
	if m.recorder != nil {
		m.recorder.RecordCheckpoint(ctx, trigger)
	}
	logger.Debugf("Checkpoint %s ('%s') taken for execution %s.", cp.ID, cp.Name, executionID)
	return cp.Clone(), nil
}

// Take implements the engine's CheckpointTaker hook.
func (m *Manager) Take(ctx context.Context, executionID, name string, trigger model.CheckpointTrigger, metadata map[string]interface{}) (string, error) {
	cp, err := m.Create(ctx, executionID, name, trigger, metadata)
	if err != nil {
		return "", err
	}
	return cp.ID, nil
}

// Get returns a detached copy of one checkpoint.
func (m *Manager) Get(ctx context.Context, id string) (*model.Checkpoint, error) {
	cp, err := m.repo.FindCheckpointByID(ctx, id)
	if err != nil {
		return nil, exception.NewNotFoundError(moduleName, "checkpoint not found", id)
	}
	return cp, nil
}

// List returns checkpoints matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter repository.CheckpointFilter) ([]*model.Checkpoint, error) {
	return m.repo.ListCheckpoints(ctx, filter)
}

// LatestFor returns the most recent checkpoint of an execution, or
// exception.ErrNotFound when none was ever taken.
func (m *Manager) LatestFor(ctx context.Context, executionID string) (*model.Checkpoint, error) {
	cps, err := m.repo.ListCheckpoints(ctx, repository.CheckpointFilter{ExecutionID: executionID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, exception.NewNotFoundError(moduleName, "no checkpoint for execution", executionID)
	}
	return cps[0], nil
}
