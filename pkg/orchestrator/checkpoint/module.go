package checkpoint

import (
	"go.uber.org/fx"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
)

// Module provides the checkpoint manager and attaches it to the engine's
// automatic triggers.
var Module = fx.Options(
	fx.Provide(
		func(e *engine.ExecutionEngine) Tracker { return e },
		func(r metrics.MetricRecorder) MetricSink { return r },
		NewManager,
	),
	fx.Invoke(func(e *engine.ExecutionEngine, m *Manager) {
		e.AttachCheckpointTaker(m)
	}),
)
