package sql

import (
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// ExecutionEntity is a schema model used for persistence.
type ExecutionEntity struct {
	ID          string
	Name        string
	Status      model.ExecutionStatus
	Jobs        model.JobStateMap
	JobConfigs  model.JobConfigList
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (ExecutionEntity) TableName() string {
	return "orch_execution"
}

// CheckpointEntity is a schema model used for persistence.
type CheckpointEntity struct {
	ID            string
	ExecutionID   string
	ExecutionName string
	Name          string
	Trigger       model.CheckpointTrigger `gorm:"column:trigger_type"`
	State         model.JobStateMap
	Metadata      model.JobParams
	CreatedAt     time.Time
}

func (CheckpointEntity) TableName() string {
	return "orch_checkpoint"
}

// BackfillEntity is a schema model used for persistence.
type BackfillEntity struct {
	ID                  string
	TemplateID          string
	TemplateName        string
	StartDate           time.Time
	EndDate             time.Time
	Interval            model.BackfillInterval `gorm:"column:interval_unit"`
	Status              model.ExecutionStatus
	TotalExecutions     int
	CompletedExecutions int
	FailedExecutions    int
	ExecutionIDs        model.StringList `gorm:"column:execution_ids"`
	Results             model.DateResultList
	CreatedAt           time.Time
	CompletedAt         *time.Time
}

func (BackfillEntity) TableName() string {
	return "orch_backfill"
}

// ArtifactEntity is a schema model used for persistence.
type ArtifactEntity struct {
	ID             string
	ExecutionID    string
	JobID          string
	ArtifactType   string
	StoragePath    string
	StorageBackend string
	SizeBytes      int64
	Checksum       string
	Metadata       model.JobParams
	Pinned         bool
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

func (ArtifactEntity) TableName() string {
	return "orch_artifact"
}
