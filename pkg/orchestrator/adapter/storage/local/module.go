// Package local provides the Fx module for the local storage backend.
package local

import (
	"go.uber.org/fx"

	storageAdapter "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage"
)

// Module registers the local provider into the storage provider group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLocalProvider,
		fx.As(new(storageAdapter.Provider)),
		fx.ResultTags(`group:"storage_providers"`),
	)),
)
