package sql

import (
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// --- Mapper functions ---

func fromDomainExecution(e *model.Execution) *ExecutionEntity {
	if e == nil {
		return nil
	}
	return &ExecutionEntity{
		ID:          e.ID,
		Name:        e.Name,
		Status:      e.Status,
		Jobs:        e.Jobs,
		JobConfigs:  model.JobConfigList(e.JobConfigs),
		CreatedAt:   e.CreatedAt,
		CompletedAt: e.CompletedAt,
	}
}

func toDomainExecution(entity *ExecutionEntity) *model.Execution {
	if entity == nil {
		return nil
	}
	return &model.Execution{
		ID:          entity.ID,
		Name:        entity.Name,
		Status:      entity.Status,
		Jobs:        entity.Jobs,
		JobConfigs:  []model.JobConfig(entity.JobConfigs),
		CreatedAt:   entity.CreatedAt,
		CompletedAt: entity.CompletedAt,
		// Conditions are runtime-only and not persisted.
	}
}

func fromDomainCheckpoint(cp *model.Checkpoint) *CheckpointEntity {
	if cp == nil {
		return nil
	}
	return &CheckpointEntity{
		ID:            cp.ID,
		ExecutionID:   cp.ExecutionID,
		ExecutionName: cp.ExecutionName,
		Name:          cp.Name,
		Trigger:       cp.Trigger,
		State:         cp.State,
		Metadata:      model.JobParams(cp.Metadata),
		CreatedAt:     cp.CreatedAt,
	}
}

func toDomainCheckpoint(entity *CheckpointEntity) *model.Checkpoint {
	if entity == nil {
		return nil
	}
	return &model.Checkpoint{
		ID:            entity.ID,
		ExecutionID:   entity.ExecutionID,
		ExecutionName: entity.ExecutionName,
		Name:          entity.Name,
		Trigger:       entity.Trigger,
		State:         entity.State,
		Metadata:      map[string]interface{}(entity.Metadata),
		CreatedAt:     entity.CreatedAt,
	}
}

func fromDomainBackfill(bf *model.BackfillExecution) *BackfillEntity {
	if bf == nil {
		return nil
	}
	return &BackfillEntity{
		ID:                  bf.ID,
		TemplateID:          bf.TemplateID,
		TemplateName:        bf.TemplateName,
		StartDate:           bf.StartDate,
		EndDate:             bf.EndDate,
		Interval:            bf.Interval,
		Status:              bf.Status,
		TotalExecutions:     bf.TotalExecutions,
		CompletedExecutions: bf.CompletedExecutions,
		FailedExecutions:    bf.FailedExecutions,
		ExecutionIDs:        bf.ExecutionIDs,
		Results:             model.DateResultList(bf.Results),
		CreatedAt:           bf.CreatedAt,
		CompletedAt:         bf.CompletedAt,
	}
}

func toDomainBackfill(entity *BackfillEntity) *model.BackfillExecution {
	if entity == nil {
		return nil
	}
	return &model.BackfillExecution{
		ID:                  entity.ID,
		TemplateID:          entity.TemplateID,
		TemplateName:        entity.TemplateName,
		StartDate:           entity.StartDate,
		EndDate:             entity.EndDate,
		Interval:            entity.Interval,
		Status:              entity.Status,
		TotalExecutions:     entity.TotalExecutions,
		CompletedExecutions: entity.CompletedExecutions,
		FailedExecutions:    entity.FailedExecutions,
		ExecutionIDs:        entity.ExecutionIDs,
		Results:             []model.DateExecutionResult(entity.Results),
		CreatedAt:           entity.CreatedAt,
		CompletedAt:         entity.CompletedAt,
	}
}

func fromDomainArtifact(a *model.Artifact) *ArtifactEntity {
	if a == nil {
		return nil
	}
	return &ArtifactEntity{
		ID:             a.ID,
		ExecutionID:    a.ExecutionID,
		JobID:          a.JobID,
		ArtifactType:   a.ArtifactType,
		StoragePath:    a.StoragePath,
		StorageBackend: a.StorageBackend,
		SizeBytes:      a.SizeBytes,
		Checksum:       a.Checksum,
		Metadata:       model.JobParams(a.Metadata),
		Pinned:         a.Pinned,
		ExpiresAt:      a.ExpiresAt,
		CreatedAt:      a.CreatedAt,
	}
}

func toDomainArtifact(entity *ArtifactEntity) *model.Artifact {
	if entity == nil {
		return nil
	}
	return &model.Artifact{
		ID:             entity.ID,
		ExecutionID:    entity.ExecutionID,
		JobID:          entity.JobID,
		ArtifactType:   entity.ArtifactType,
		StoragePath:    entity.StoragePath,
		StorageBackend: entity.StorageBackend,
		SizeBytes:      entity.SizeBytes,
		Checksum:       entity.Checksum,
		Metadata:       map[string]interface{}(entity.Metadata),
		Pinned:         entity.Pinned,
		ExpiresAt:      entity.ExpiresAt,
		CreatedAt:      entity.CreatedAt,
	}
}
