package metrics

import (
	"context"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// Tracer is an abstract interface for distributed tracing of executions and
// jobs. The returned end function finishes the span; call it in a defer.
type Tracer interface {
	// StartExecutionSpan starts a span covering one execution.
	StartExecutionSpan(ctx context.Context, execution *model.Execution) (context.Context, func())

	// StartJobSpan starts a span covering one job dispatch within an execution.
	StartJobSpan(ctx context.Context, executionID string, job model.JobConfig) (context.Context, func())

	// RecordError records an error on the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records a point-in-time event on the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
