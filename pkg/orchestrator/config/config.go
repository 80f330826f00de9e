// Package config loads and provides the application configuration from
// embedded YAML, an optional .env file and environment variable
// placeholders.
package config

import (
	"github.com/mitchellh/mapstructure"

	storageConfig "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/config"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

// EmbeddedConfig holds the raw bytes of the configuration file, typically
// embedded into the binary and passed from main.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // Logging level (e.g. "INFO", "DEBUG").
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// CheckpointConfig enables automatic checkpoint triggers.
type CheckpointConfig struct {
	OnJobCompleted   bool `yaml:"on_job_completed"`
	OnLevelCompleted bool `yaml:"on_level_completed"`
	BeforeCritical   bool `yaml:"before_critical"`
	IntervalSeconds  int  `yaml:"interval_seconds"` // Zero disables time-based checkpoints.
}

// EngineConfig holds the execution engine defaults.
type EngineConfig struct {
	Parallelism int              `yaml:"parallelism"`
	Checkpoint  CheckpointConfig `yaml:"checkpoint"`
}

// MetricsConfig holds the observability settings.
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// DatabaseConfig holds the relational persistence settings. An empty Type
// selects the in-memory repository.
type DatabaseConfig struct {
	Type    string `yaml:"type"`
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// ArtifactConfig holds the artifact service settings.
type ArtifactConfig struct {
	Connection    string `yaml:"connection"`
	RetentionDays int    `yaml:"retention_days"`
}

// OrchestratorConfig holds all configuration under the "orchestrator"
// top-level key.
type OrchestratorConfig struct {
	System   SystemConfig   `yaml:"system"`
	Engine   EngineConfig   `yaml:"engine"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Database DatabaseConfig `yaml:"database"`
	Artifact ArtifactConfig `yaml:"artifact"`
	// Storage holds the named storage connection blocks as raw maps; they are
	// decoded on demand by StoragesConfig.
	Storage map[string]interface{} `yaml:"storage"`
}

// Config is the root structure of the application configuration.
type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Engine: EngineConfig{
				Parallelism: 3,
			},
			Artifact: ArtifactConfig{
				Connection:    "artifacts",
				RetentionDays: 30,
			},
		},
	}
}

// StoragesConfig decodes the raw storage blocks into typed per-connection
// configuration. Decoding uses the yaml tags on StorageConfig, matching how
// the blocks were written.
func (c *Config) StoragesConfig() (storageConfig.StoragesConfig, error) {
	out := make(storageConfig.StoragesConfig, len(c.Orchestrator.Storage))
	for name, raw := range c.Orchestrator.Storage {
		var cfg storageConfig.StorageConfig
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:  &cfg,
			TagName: "yaml",
		})
		if err != nil {
			return nil, exception.NewConfigError(moduleName, "failed to create storage config decoder", name)
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, exception.NewConfigError(moduleName, "failed to decode storage config block", name)
		}
		out[name] = cfg
	}
	return out, nil
}
