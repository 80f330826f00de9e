package sql

import (
	"go.uber.org/fx"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
)

// Module opens the configured database, applies migrations and provides the
// SQL repository as every persistence port. Requires a Config in the graph.
var Module = fx.Options(
	fx.Provide(
		OpenDatabase,
		NewSQLRepository,
		func(r *SQLRepository) repository.ExecutionRepository { return r },
		func(r *SQLRepository) repository.CheckpointRepository { return r },
		func(r *SQLRepository) repository.BackfillRepository { return r },
		func(r *SQLRepository) repository.ArtifactRepository { return r },
	),
	fx.Invoke(func(cfg Config, r *SQLRepository) error {
		if !cfg.Migrate {
			return nil
		}
		return Migrate(r.db, cfg.Type)
	}),
)
