// Package metrics defines the observability ports of the orchestrator:
// an abstract MetricRecorder and Tracer that concrete backends
// (Prometheus, OpenTelemetry) implement under infrastructure/metrics.
package metrics

import (
	"context"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// MetricRecorder records metrics for execution and job lifecycle events.
// Implementations must be safe for concurrent use; recording must never
// influence scheduling decisions.
type MetricRecorder interface {
	// RecordExecutionStart records the start of an Execution.
	RecordExecutionStart(ctx context.Context, execution *model.Execution)

	// RecordExecutionEnd records the end of an Execution with its final status.
	RecordExecutionEnd(ctx context.Context, execution *model.Execution)

	// RecordJobStart records a job entering the running state.
	RecordJobStart(ctx context.Context, executionName, jobType string)

	// RecordJobEnd records a job leaving the running state with its terminal
	// status and wall-clock duration.
	RecordJobEnd(ctx context.Context, executionName, jobType string, status model.JobStatus, duration time.Duration)

	// RecordCheckpoint records a checkpoint being taken with its trigger.
	RecordCheckpoint(ctx context.Context, trigger model.CheckpointTrigger)

	// RecordBackfillDate records the outcome of one backfill date.
	RecordBackfillDate(ctx context.Context, templateName string, failed bool)
}
