// Package metrics provides an ExecutionListener that annotates the active
// trace span with settlement events. Counters and histograms are recorded by
// the engine through MetricRecorder; this listener adds the per-event trace
// detail.
package metrics

import (
	"context"

	coremetrics "github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
)

// TraceEventListener emits one span event per job settlement.
type TraceEventListener struct {
	tracer coremetrics.Tracer
}

// NewTraceEventListener creates a TraceEventListener over the tracer.
func NewTraceEventListener(tracer coremetrics.Tracer) engine.ExecutionListener {
	return &TraceEventListener{tracer: tracer}
}

func (l *TraceEventListener) OnJobCompleted(ctx context.Context, executionID string, state *model.JobState) {
	l.tracer.RecordEvent(ctx, "job.completed", map[string]interface{}{
		"jobId":       state.JobID,
		"executionId": executionID,
	})
}

func (l *TraceEventListener) OnJobFailed(ctx context.Context, executionID string, state *model.JobState) {
	l.tracer.RecordEvent(ctx, "job.failed", map[string]interface{}{
		"jobId":       state.JobID,
		"executionId": executionID,
		"error":       state.Error,
	})
}

func (l *TraceEventListener) OnJobSkipped(ctx context.Context, executionID string, state *model.JobState) {
	l.tracer.RecordEvent(ctx, "job.skipped", map[string]interface{}{
		"jobId":       state.JobID,
		"executionId": executionID,
	})
}

func (l *TraceEventListener) OnProgress(ctx context.Context, executionID string, completed, total int) {
	l.tracer.RecordEvent(ctx, "execution.progress", map[string]interface{}{
		"executionId": executionID,
		"completed":   completed,
		"total":       total,
	})
}

var _ engine.ExecutionListener = (*TraceEventListener)(nil)
