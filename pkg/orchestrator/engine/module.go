package engine

import (
	"go.uber.org/fx"
)

// Module provides the execution engine.
var Module = fx.Options(
	fx.Provide(NewExecutionEngine),
)
