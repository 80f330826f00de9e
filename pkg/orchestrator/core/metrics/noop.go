package metrics

import (
	"context"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// NoOpMetricRecorder is a MetricRecorder that does nothing. It is used when
// metrics are disabled and in tests.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordExecutionStart does nothing.
func (r *NoOpMetricRecorder) RecordExecutionStart(ctx context.Context, execution *model.Execution) {
}

// RecordExecutionEnd does nothing.
func (r *NoOpMetricRecorder) RecordExecutionEnd(ctx context.Context, execution *model.Execution) {}

// RecordJobStart does nothing.
func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, executionName, jobType string) {}

// RecordJobEnd does nothing.
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, executionName, jobType string, status model.JobStatus, duration time.Duration) {
}

// RecordCheckpoint does nothing.
func (r *NoOpMetricRecorder) RecordCheckpoint(ctx context.Context, trigger model.CheckpointTrigger) {
}

// RecordBackfillDate does nothing.
func (r *NoOpMetricRecorder) RecordBackfillDate(ctx context.Context, templateName string, failed bool) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is a Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartExecutionSpan returns the context unchanged.
func (t *NoOpTracer) StartExecutionSpan(ctx context.Context, execution *model.Execution) (context.Context, func()) {
	return ctx, func() {}
}

// StartJobSpan returns the context unchanged.
func (t *NoOpTracer) StartJobSpan(ctx context.Context, executionID string, job model.JobConfig) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError does nothing.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
