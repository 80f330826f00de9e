package storage

import (
	"go.uber.org/fx"
)

// Module provides the Selector over every registered backend provider.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewSelector,
		fx.ParamTags(`group:"storage_providers"`, ``),
	)),
)
