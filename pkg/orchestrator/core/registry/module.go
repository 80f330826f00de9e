package registry

import (
	"go.uber.org/fx"
)

// Module provides the HandlerRegistry to the application's dependency graph.
// Host applications contribute handlers via fx.Invoke against the registry.
var Module = fx.Options(
	fx.Provide(NewHandlerRegistry),
)
