// Package repository defines the persistence ports of the orchestrator.
// The in-memory representation is the source of truth during a run; these
// interfaces are consulted at checkpoint and completion boundaries and by
// query paths after a process restart.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// Standard repository errors.
var (
	ErrExecutionNotFound  = errors.New("execution not found")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrBackfillNotFound   = errors.New("backfill execution not found")
	ErrArtifactNotFound   = errors.New("artifact not found")
)

// CheckpointFilter narrows a checkpoint listing. Zero values mean "no filter";
// Limit of zero means no limit.
type CheckpointFilter struct {
	ExecutionID string
	Trigger     model.CheckpointTrigger
	Limit       int
	Offset      int
}

// ExecutionRepository persists finished and checkpointed execution records.
type ExecutionRepository interface {
	// SaveExecution persists a new execution record.
	SaveExecution(ctx context.Context, execution *model.Execution) error
	// UpdateExecution updates an existing execution record.
	UpdateExecution(ctx context.Context, execution *model.Execution) error
	// FindExecutionByID loads an execution by id, or ErrExecutionNotFound.
	FindExecutionByID(ctx context.Context, id string) (*model.Execution, error)
	// ListExecutions returns execution records, newest first.
	ListExecutions(ctx context.Context, limit, offset int) ([]*model.Execution, error)
}

// CheckpointRepository persists immutable checkpoint snapshots.
type CheckpointRepository interface {
	// SaveCheckpoint persists a new checkpoint. Checkpoints are never updated.
	SaveCheckpoint(ctx context.Context, checkpoint *model.Checkpoint) error
	// FindCheckpointByID loads a checkpoint by id, or ErrCheckpointNotFound.
	FindCheckpointByID(ctx context.Context, id string) (*model.Checkpoint, error)
	// ListCheckpoints returns checkpoints matching the filter, newest first.
	ListCheckpoints(ctx context.Context, filter CheckpointFilter) ([]*model.Checkpoint, error)
}

// BackfillRepository persists backfill aggregates.
type BackfillRepository interface {
	// SaveBackfillExecution persists a new backfill record.
	SaveBackfillExecution(ctx context.Context, backfill *model.BackfillExecution) error
	// UpdateBackfillExecution updates the running tallies of a backfill record.
	UpdateBackfillExecution(ctx context.Context, backfill *model.BackfillExecution) error
	// FindBackfillExecutionByID loads a backfill by id, or ErrBackfillNotFound.
	FindBackfillExecutionByID(ctx context.Context, id string) (*model.BackfillExecution, error)
}

// ArtifactRepository persists artifact records registered by job handlers.
type ArtifactRepository interface {
	// SaveArtifact persists a new artifact record.
	SaveArtifact(ctx context.Context, artifact *model.Artifact) error
	// FindArtifactByID loads an artifact by id, or ErrArtifactNotFound.
	FindArtifactByID(ctx context.Context, id string) (*model.Artifact, error)
	// FindArtifactsByExecutionID lists the artifacts of one execution.
	FindArtifactsByExecutionID(ctx context.Context, executionID string) ([]*model.Artifact, error)
	// DeleteArtifact removes an artifact record (expiration sweep).
	DeleteArtifact(ctx context.Context, id string) error
	// FindExpiredArtifacts lists unpinned artifacts whose ExpiresAt is before now.
	FindExpiredArtifacts(ctx context.Context, now time.Time) ([]*model.Artifact, error)
}
