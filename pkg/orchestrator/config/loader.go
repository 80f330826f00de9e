package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

const moduleName = "config"

// LoadConfig builds the configuration: defaults, then the embedded YAML with
// ${VAR} placeholders expanded from the environment. A .env file, when
// present, is loaded into the environment first so placeholders can
// reference it.
func LoadConfig(envFilePath string, embedded EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()
	if len(embedded) > 0 {
		expanded := os.ExpandEnv(string(embedded))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, exception.NewConfigError(moduleName, "failed to unmarshal embedded config: "+err.Error(), "")
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies the small set of direct environment overrides
// that must win over file contents in containerized deployments.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORCHESTRATOR_LOG_LEVEL"); v != "" {
		cfg.Orchestrator.System.Logging.Level = v
	}
	if v := os.Getenv("ORCHESTRATOR_DB_DSN"); v != "" {
		cfg.Orchestrator.Database.DSN = v
	}
	if v := os.Getenv("ORCHESTRATOR_OTLP_ENDPOINT"); v != "" {
		cfg.Orchestrator.Metrics.OTLPEndpoint = v
	}
}
