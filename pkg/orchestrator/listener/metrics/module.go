package metrics

import (
	"go.uber.org/fx"

	coremetrics "github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
)

// Module attaches the trace event listener to the engine.
var Module = fx.Options(
	fx.Invoke(func(e *engine.ExecutionEngine, tracer coremetrics.Tracer) {
		e.AddListener(NewTraceEventListener(tracer))
	}),
)
