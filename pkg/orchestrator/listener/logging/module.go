package logging

import (
	"go.uber.org/fx"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
)

// Module attaches the logging listener to the engine.
var Module = fx.Options(
	fx.Invoke(func(e *engine.ExecutionEngine) {
		e.AddListener(NewLoggingListener())
	}),
)
