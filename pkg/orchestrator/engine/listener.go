package engine

import (
	"context"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// ExecutionListener observes job settlement and overall progress of an
// execution. Listeners receive detached JobState copies and must not attempt
// to influence scheduling; the engine ignores anything they do.
type ExecutionListener interface {
	// OnJobCompleted fires after a job reaches completed.
	OnJobCompleted(ctx context.Context, executionID string, state *model.JobState)
	// OnJobFailed fires after a job reaches failed.
	OnJobFailed(ctx context.Context, executionID string, state *model.JobState)
	// OnJobSkipped fires after a job is skipped by its condition.
	OnJobSkipped(ctx context.Context, executionID string, state *model.JobState)
	// OnProgress fires after every job settlement with the number of jobs in
	// a terminal state and the total job count.
	OnProgress(ctx context.Context, executionID string, completed, total int)
}

// CheckpointTaker is the engine's view of the checkpoint manager. It is
// attached after construction to break the mutual dependency between the
// engine (which fires triggers) and the manager (which snapshots live
// executions tracked by the engine).
type CheckpointTaker interface {
	// Take snapshots the execution's current job map under the given trigger.
	Take(ctx context.Context, executionID, name string, trigger model.CheckpointTrigger, metadata map[string]interface{}) (string, error)
}
