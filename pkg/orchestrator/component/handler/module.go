package handler

import (
	"go.uber.org/fx"
)

// Module registers the built-in handlers on startup.
var Module = fx.Options(
	fx.Invoke(RegisterBuiltins),
)
