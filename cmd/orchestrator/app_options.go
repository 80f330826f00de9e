package main

import (
	"context"
	"time"

	"go.uber.org/fx"

	storageAdapter "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage"
	storageConfig "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/config"
	storageGCS "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/gcs"
	storageLocal "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/local"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/artifact"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/backfill"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/checkpoint"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/component/handler"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/config"
	coremetrics "github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/registry"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
	inframetrics "github.com/canfieldjuan/finetunelab/pkg/orchestrator/infrastructure/metrics"
	inmemoryRepo "github.com/canfieldjuan/finetunelab/pkg/orchestrator/infrastructure/repository/inmemory"
	sqlRepo "github.com/canfieldjuan/finetunelab/pkg/orchestrator/infrastructure/repository/sql"
	loggingListener "github.com/canfieldjuan/finetunelab/pkg/orchestrator/listener/logging"
	metricsListener "github.com/canfieldjuan/finetunelab/pkg/orchestrator/listener/metrics"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

// GetApplicationOptions builds the fx option set for the orchestrator
// application. The configuration is loaded eagerly so module selection
// (repository backend, observability) can depend on it.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, embeddedPipeline PipelineBytes) []fx.Option {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLogLevel(cfg.Orchestrator.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Orchestrator.System.Logging.Level)

	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		embeddedPipeline,
		cfg,
		fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
	))

	// Derived configuration blocks.
	options = append(options, fx.Provide(
		func(c *config.Config) engine.Options {
			return engine.Options{
				Parallelism: c.Orchestrator.Engine.Parallelism,
				Checkpoint: engine.CheckpointPolicy{
					OnJobCompleted:   c.Orchestrator.Engine.Checkpoint.OnJobCompleted,
					OnLevelCompleted: c.Orchestrator.Engine.Checkpoint.OnLevelCompleted,
					BeforeCritical:   c.Orchestrator.Engine.Checkpoint.BeforeCritical,
					Interval:         time.Duration(c.Orchestrator.Engine.Checkpoint.IntervalSeconds) * time.Second,
				},
			}
		},
		func(c *config.Config) (storageConfig.StoragesConfig, error) {
			return c.StoragesConfig()
		},
		func(c *config.Config) artifact.Config {
			return artifact.Config{Connection: c.Orchestrator.Artifact.Connection}
		},
	))

	// Persistence backend: relational when configured, in-memory otherwise.
	if cfg.Orchestrator.Database.Type != "" {
		options = append(options,
			fx.Supply(sqlRepo.Config{
				Type:    cfg.Orchestrator.Database.Type,
				DSN:     cfg.Orchestrator.Database.DSN,
				Migrate: cfg.Orchestrator.Database.Migrate,
			}),
			sqlRepo.Module,
		)
	} else {
		options = append(options, inmemoryRepo.Module)
	}

	// Observability: Prometheus/OTel when enabled, no-ops otherwise.
	if cfg.Orchestrator.Metrics.Enabled {
		options = append(options,
			fx.Supply(inframetrics.Config{
				OTLPEndpoint: cfg.Orchestrator.Metrics.OTLPEndpoint,
				ServiceName:  cfg.Orchestrator.Metrics.ServiceName,
			}),
			inframetrics.Module,
			metricsListener.Module,
		)
	} else {
		options = append(options, coremetrics.NoOpModule)
	}

	options = append(options,
		registry.Module,
		engine.Module,
		checkpoint.Module,
		backfill.Module,
		artifact.Module,
		storageAdapter.Module,
		storageLocal.Module,
		storageGCS.Module,
		handler.Module,
		loggingListener.Module,
	)

	options = append(options, fx.Invoke(fx.Annotate(
		startPipelineExecution,
		fx.ParamTags("", "", "", "", "", "", `name:"appCtx"`),
	)))

	return options
}

// startPipelineExecution runs the embedded pipeline once the graph is wired:
// a plain execution, or a backfill when the pipeline enables one. The
// application shuts down when the run finishes.
func startPipelineExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	eng *engine.ExecutionEngine,
	orch *backfill.Orchestrator,
	opts engine.Options,
	pipelineBytes PipelineBytes,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			spec, err := LoadPipeline(pipelineBytes)
			if err != nil {
				return err
			}
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in pipeline execution: %v", r)
					}
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				runPipeline(appCtx, eng, orch, opts, spec)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}

func runPipeline(ctx context.Context, eng *engine.ExecutionEngine, orch *backfill.Orchestrator, opts engine.Options, spec *PipelineSpec) {
	p := spec.Pipeline
	if !p.Backfill.Enabled {
		exec, err := eng.Execute(ctx, p.Name, p.Jobs, opts)
		if err != nil {
			logger.Errorf("Pipeline '%s' failed to start: %v", p.Name, err)
			return
		}
		logger.Infof("Pipeline '%s' finished with status %s (execution %s).", p.Name, exec.Status, exec.ID)
		return
	}

	start, err := parseDate(p.Backfill.StartDate)
	if err != nil {
		logger.Errorf("Invalid backfill start date '%s': %v", p.Backfill.StartDate, err)
		return
	}
	end, err := parseDate(p.Backfill.EndDate)
	if err != nil {
		logger.Errorf("Invalid backfill end date '%s': %v", p.Backfill.EndDate, err)
		return
	}
	bf, err := orch.Execute(ctx, p.Name, p.Jobs, backfill.Config{
		TemplateID:  model.NewID(),
		StartDate:   start,
		EndDate:     end,
		Interval:    model.BackfillInterval(p.Backfill.Interval),
		Parallelism: p.Backfill.Parallelism,
		Engine:      opts,
	})
	if err != nil {
		logger.Warnf("Backfill of pipeline '%s' reported failures: %v", p.Name, err)
	}
	if bf != nil {
		logger.Infof("Backfill of pipeline '%s' finished with status %s (%d completed, %d failed).",
			p.Name, bf.Status, bf.CompletedExecutions, bf.FailedExecutions)
	}
}
