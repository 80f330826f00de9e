package artifact

import (
	"go.uber.org/fx"
)

// Module provides the artifact service.
var Module = fx.Options(
	fx.Provide(NewService),
)
