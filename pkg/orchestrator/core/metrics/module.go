package metrics

import (
	"go.uber.org/fx"
)

// NoOpModule provides no-op metric and trace implementations. Applications
// that enable observability replace it with infrastructure/metrics.Module.
var NoOpModule = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
