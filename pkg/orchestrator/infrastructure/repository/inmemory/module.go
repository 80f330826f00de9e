package inmemory

import (
	"go.uber.org/fx"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
)

// Module provides the in-memory repository as every persistence port.
var Module = fx.Options(
	fx.Provide(
		NewRepository,
		func(r *Repository) repository.ExecutionRepository { return r },
		func(r *Repository) repository.CheckpointRepository { return r },
		func(r *Repository) repository.BackfillRepository { return r },
		func(r *Repository) repository.ArtifactRepository { return r },
	),
)
