// Package inmemory implements the repository ports on process-local maps.
// Reads return deep copies so callers can never mutate stored records.
// Suited for tests and single-process deployments without a database.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
)

// Repository implements every persistence port on guarded maps.
type Repository struct {
	mu          sync.RWMutex
	executions  map[string]*model.Execution
	checkpoints map[string]*model.Checkpoint
	backfills   map[string]*model.BackfillExecution
	artifacts   map[string]*model.Artifact
}

var (
	_ repository.ExecutionRepository  = (*Repository)(nil)
	_ repository.CheckpointRepository = (*Repository)(nil)
	_ repository.BackfillRepository   = (*Repository)(nil)
	_ repository.ArtifactRepository   = (*Repository)(nil)
)

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		executions:  make(map[string]*model.Execution),
		checkpoints: make(map[string]*model.Checkpoint),
		backfills:   make(map[string]*model.BackfillExecution),
		artifacts:   make(map[string]*model.Artifact),
	}
}

// SaveExecution persists a copy of the execution record.
func (r *Repository) SaveExecution(ctx context.Context, execution *model.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[execution.ID] = execution.Clone()
	return nil
}

// UpdateExecution replaces an existing execution record.
func (r *Repository) UpdateExecution(ctx context.Context, execution *model.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.executions[execution.ID]; !ok {
		return repository.ErrExecutionNotFound
	}
	r.executions[execution.ID] = execution.Clone()
	return nil
}

// FindExecutionByID returns a copy of the execution record.
func (r *Repository) FindExecutionByID(ctx context.Context, id string) (*model.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executions[id]
	if !ok {
		return nil, repository.ErrExecutionNotFound
	}
	return exec.Clone(), nil
}

// ListExecutions returns copies of execution records, newest first.
func (r *Repository) ListExecutions(ctx context.Context, limit, offset int) ([]*model.Execution, error) {
	r.mu.RLock()
	all := make([]*model.Execution, 0, len(r.executions))
	for _, exec := range r.executions {
		all = append(all, exec.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), nil
}

// SaveCheckpoint persists a copy of the checkpoint.
func (r *Repository) SaveCheckpoint(ctx context.Context, checkpoint *model.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints[checkpoint.ID] = checkpoint.Clone()
	return nil
}

// FindCheckpointByID returns a copy of the checkpoint.
func (r *Repository) FindCheckpointByID(ctx context.Context, id string) (*model.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp, ok := r.checkpoints[id]
	if !ok {
		return nil, repository.ErrCheckpointNotFound
	}
	return cp.Clone(), nil
}

// ListCheckpoints returns copies of checkpoints matching the filter, newest
// first.
func (r *Repository) ListCheckpoints(ctx context.Context, filter repository.CheckpointFilter) ([]*model.Checkpoint, error) {
	r.mu.RLock()
	matched := make([]*model.Checkpoint, 0, len(r.checkpoints))
	for _, cp := range r.checkpoints {
		if filter.ExecutionID != "" && cp.ExecutionID != filter.ExecutionID {
			continue
		}
		if filter.Trigger != "" && cp.Trigger != filter.Trigger {
			continue
		}
		matched = append(matched, cp.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, filter.Limit, filter.Offset), nil
}

// SaveBackfillExecution persists a copy of the backfill record.
func (r *Repository) SaveBackfillExecution(ctx context.Context, backfill *model.BackfillExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backfills[backfill.ID] = backfill.Clone()
	return nil
}

// UpdateBackfillExecution replaces an existing backfill record.
func (r *Repository) UpdateBackfillExecution(ctx context.Context, backfill *model.BackfillExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backfills[backfill.ID]; !ok {
		return repository.ErrBackfillNotFound
	}
	r.backfills[backfill.ID] = backfill.Clone()
	return nil
}

// FindBackfillExecutionByID returns a copy of the backfill record.
func (r *Repository) FindBackfillExecutionByID(ctx context.Context, id string) (*model.BackfillExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bf, ok := r.backfills[id]
	if !ok {
		return nil, repository.ErrBackfillNotFound
	}
	return bf.Clone(), nil
}

// SaveArtifact persists a copy of the artifact record.
func (r *Repository) SaveArtifact(ctx context.Context, artifact *model.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[artifact.ID] = artifact.Clone()
	return nil
}

// FindArtifactByID returns a copy of the artifact record.
func (r *Repository) FindArtifactByID(ctx context.Context, id string) (*model.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	art, ok := r.artifacts[id]
	if !ok {
		return nil, repository.ErrArtifactNotFound
	}
	return art.Clone(), nil
}

// FindArtifactsByExecutionID returns copies of an execution's artifacts,
// oldest first.
func (r *Repository) FindArtifactsByExecutionID(ctx context.Context, executionID string) ([]*model.Artifact, error) {
	r.mu.RLock()
	matched := make([]*model.Artifact, 0)
	for _, art := range r.artifacts {
		if art.ExecutionID == executionID {
			matched = append(matched, art.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return matched, nil
}

// DeleteArtifact removes the artifact record.
func (r *Repository) DeleteArtifact(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.artifacts[id]; !ok {
		return repository.ErrArtifactNotFound
	}
	delete(r.artifacts, id)
	return nil
}

// FindExpiredArtifacts returns copies of unpinned artifacts past expiry.
func (r *Repository) FindExpiredArtifacts(ctx context.Context, now time.Time) ([]*model.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	expired := make([]*model.Artifact, 0)
	for _, art := range r.artifacts {
		if !art.Pinned && art.ExpiresAt != nil && art.ExpiresAt.Before(now) {
			expired = append(expired, art.Clone())
		}
	}
	return expired, nil
}

// paginate applies offset/limit to an already-sorted slice. A zero limit
// means no limit.
func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
