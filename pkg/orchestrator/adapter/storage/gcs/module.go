// Package gcs provides the Fx module for the GCS storage backend.
package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage"
)

// Module registers the GCS provider into the storage provider group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGCSProvider,
		fx.As(new(storageAdapter.Provider)),
		fx.ResultTags(`group:"storage_providers"`),
	)),
)
