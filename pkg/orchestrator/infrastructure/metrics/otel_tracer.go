package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coremetrics "github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

const tracerName = "orchestrator"

// OpenTelemetryTracer implements metrics.Tracer on OpenTelemetry spans. It
// uses the globally registered TracerProvider, so span export follows
// whatever provider the application installs (see NewTracerProvider).
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates an OpenTelemetryTracer.
func NewOpenTelemetryTracer() *OpenTelemetryTracer {
	return &OpenTelemetryTracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartExecutionSpan starts a span covering one execution.
func (t *OpenTelemetryTracer) StartExecutionSpan(ctx context.Context, execution *model.Execution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("execution %s", execution.Name),
		trace.WithAttributes(
			attribute.String("orchestrator.execution.id", execution.ID),
			attribute.String("orchestrator.execution.name", execution.Name),
			attribute.Int("orchestrator.execution.jobs", len(execution.Jobs)),
		))
	return ctx, func() { span.End() }
}

// StartJobSpan starts a span covering one job dispatch.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, executionID string, job model.JobConfig) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("job %s", job.ID),
		trace.WithAttributes(
			attribute.String("orchestrator.execution.id", executionID),
			attribute.String("orchestrator.job.id", job.ID),
			attribute.String("orchestrator.job.type", job.Type),
		))
	return ctx, func() { span.End() }
}

// RecordError records an error on the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("orchestrator.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records a point-in-time event on the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

var _ coremetrics.Tracer = (*OpenTelemetryTracer)(nil)
