package metrics

import (
	"context"

	"go.uber.org/fx"

	coremetrics "github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
)

// Module provides the Prometheus recorder and OTel tracer as the
// observability ports, and manages the tracer provider lifecycle.
var Module = fx.Options(
	fx.Provide(
		NewPrometheusRecorder,
		func(r *PrometheusRecorder) coremetrics.MetricRecorder { return r },
		NewOpenTelemetryTracer,
		func(t *OpenTelemetryTracer) coremetrics.Tracer { return t },
	),
	fx.Invoke(func(lc fx.Lifecycle, cfg Config) {
		var shutdown func(context.Context) error
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				var err error
				shutdown, err = SetupTracerProvider(ctx, cfg)
				return err
			},
			OnStop: func(ctx context.Context) error {
				if shutdown == nil {
					return nil
				}
				return shutdown(ctx)
			},
		})
	}),
)
