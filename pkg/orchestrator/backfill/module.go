package backfill

import (
	"go.uber.org/fx"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
)

// Module provides the backfill orchestrator driving the execution engine.
var Module = fx.Options(
	fx.Provide(
		func(e *engine.ExecutionEngine) Runner { return e },
		NewOrchestrator,
	),
)
