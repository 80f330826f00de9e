// Package sql implements the repository ports on a relational database via
// gorm. Nested structures (job maps, configs, results) are stored as JSON
// columns through the model types' Valuer/Scanner implementations.
package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
)

// SQLRepository implements every persistence port on one gorm connection.
type SQLRepository struct {
	db *gorm.DB
}

var (
	_ repository.ExecutionRepository  = (*SQLRepository)(nil)
	_ repository.CheckpointRepository = (*SQLRepository)(nil)
	_ repository.BackfillRepository   = (*SQLRepository)(nil)
	_ repository.ArtifactRepository   = (*SQLRepository)(nil)
)

// NewSQLRepository creates a SQLRepository over an open gorm connection.
func NewSQLRepository(db *gorm.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// SaveExecution persists a new execution record.
func (r *SQLRepository) SaveExecution(ctx context.Context, execution *model.Execution) error {
	return r.db.WithContext(ctx).Create(fromDomainExecution(execution)).Error
}

// UpdateExecution updates an existing execution record.
func (r *SQLRepository) UpdateExecution(ctx context.Context, execution *model.Execution) error {
	res := r.db.WithContext(ctx).
		Model(&ExecutionEntity{}).
		Where("id = ?", execution.ID).
		Updates(fromDomainExecution(execution))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrExecutionNotFound
	}
	return nil
}

// FindExecutionByID loads an execution by id.
func (r *SQLRepository) FindExecutionByID(ctx context.Context, id string) (*model.Execution, error) {
	var entity ExecutionEntity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrExecutionNotFound
		}
		return nil, err
	}
	return toDomainExecution(&entity), nil
}

// ListExecutions returns execution records, newest first.
func (r *SQLRepository) ListExecutions(ctx context.Context, limit, offset int) ([]*model.Execution, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var entities []ExecutionEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Execution, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainExecution(&entities[i]))
	}
	return out, nil
}

// SaveCheckpoint persists a new checkpoint. Checkpoints are never updated.
func (r *SQLRepository) SaveCheckpoint(ctx context.Context, checkpoint *model.Checkpoint) error {
	return r.db.WithContext(ctx).Create(fromDomainCheckpoint(checkpoint)).Error
}

// FindCheckpointByID loads a checkpoint by id.
func (r *SQLRepository) FindCheckpointByID(ctx context.Context, id string) (*model.Checkpoint, error) {
	var entity CheckpointEntity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCheckpointNotFound
		}
		return nil, err
	}
	return toDomainCheckpoint(&entity), nil
}

// ListCheckpoints returns checkpoints matching the filter, newest first.
func (r *SQLRepository) ListCheckpoints(ctx context.Context, filter repository.CheckpointFilter) ([]*model.Checkpoint, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if filter.ExecutionID != "" {
		q = q.Where("execution_id = ?", filter.ExecutionID)
	}
	if filter.Trigger != "" {
		q = q.Where("trigger_type = ?", filter.Trigger)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var entities []CheckpointEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Checkpoint, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainCheckpoint(&entities[i]))
	}
	return out, nil
}

// SaveBackfillExecution persists a new backfill record.
func (r *SQLRepository) SaveBackfillExecution(ctx context.Context, backfill *model.BackfillExecution) error {
	return r.db.WithContext(ctx).Create(fromDomainBackfill(backfill)).Error
}

// UpdateBackfillExecution updates the running tallies of a backfill record.
func (r *SQLRepository) UpdateBackfillExecution(ctx context.Context, backfill *model.BackfillExecution) error {
	res := r.db.WithContext(ctx).
		Model(&BackfillEntity{}).
		Where("id = ?", backfill.ID).
		Updates(fromDomainBackfill(backfill))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrBackfillNotFound
	}
	return nil
}

// FindBackfillExecutionByID loads a backfill by id.
func (r *SQLRepository) FindBackfillExecutionByID(ctx context.Context, id string) (*model.BackfillExecution, error) {
	var entity BackfillEntity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrBackfillNotFound
		}
		return nil, err
	}
	return toDomainBackfill(&entity), nil
}

// SaveArtifact persists a new artifact record.
func (r *SQLRepository) SaveArtifact(ctx context.Context, artifact *model.Artifact) error {
	return r.db.WithContext(ctx).Create(fromDomainArtifact(artifact)).Error
}

// FindArtifactByID loads an artifact by id.
func (r *SQLRepository) FindArtifactByID(ctx context.Context, id string) (*model.Artifact, error) {
	var entity ArtifactEntity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrArtifactNotFound
		}
		return nil, err
	}
	return toDomainArtifact(&entity), nil
}

// FindArtifactsByExecutionID lists the artifacts of one execution, oldest
// first.
func (r *SQLRepository) FindArtifactsByExecutionID(ctx context.Context, executionID string) ([]*model.Artifact, error) {
	var entities []ArtifactEntity
	err := r.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Artifact, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainArtifact(&entities[i]))
	}
	return out, nil
}

// DeleteArtifact removes an artifact record.
func (r *SQLRepository) DeleteArtifact(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ArtifactEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrArtifactNotFound
	}
	return nil
}

// FindExpiredArtifacts lists unpinned artifacts whose expiry is before now.
func (r *SQLRepository) FindExpiredArtifacts(ctx context.Context, now time.Time) ([]*model.Artifact, error) {
	var entities []ArtifactEntity
	err := r.db.WithContext(ctx).
		Where("pinned = ? AND expires_at IS NOT NULL AND expires_at < ?", false, now).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Artifact, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainArtifact(&entities[i]))
	}
	return out, nil
}
