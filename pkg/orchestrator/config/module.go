package config

import (
	"go.uber.org/fx"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// NewConfigProvider loads the configuration and applies the global log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Orchestrator.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Orchestrator.System.Logging.Level)
	return cfg, nil
}

// Module provides *Config from the embedded configuration bytes.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)
