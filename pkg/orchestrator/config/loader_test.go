package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/config"
	appconfig "github.com/canfieldjuan/finetunelab/pkg/orchestrator/config"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

const sampleConfig = `
orchestrator:
  system:
    timezone: Asia/Tokyo
    logging:
      level: DEBUG
  engine:
    parallelism: 5
    checkpoint:
      on_level_completed: true
      before_critical: true
      interval_seconds: 60
  metrics:
    enabled: true
    otlp_endpoint: localhost:4317
    service_name: orchestrator
  database:
    type: sqlite
    dsn: file:test.db
    migrate: true
  artifact:
    connection: artifacts
    retention_days: 7
  storage:
    artifacts:
      type: local
      base_dir: ./data
    lake:
      type: gcs
      bucket_name: my-bucket
      credentials_file: /secrets/gcs.json
`

func TestLoadConfig_FromEmbeddedYAML(t *testing.T) {
	cfg, err := appconfig.LoadConfig("", []byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "Asia/Tokyo", cfg.Orchestrator.System.Timezone)
	assert.Equal(t, "DEBUG", cfg.Orchestrator.System.Logging.Level)
	assert.Equal(t, 5, cfg.Orchestrator.Engine.Parallelism)
	assert.True(t, cfg.Orchestrator.Engine.Checkpoint.OnLevelCompleted)
	assert.False(t, cfg.Orchestrator.Engine.Checkpoint.OnJobCompleted)
	assert.Equal(t, 60, cfg.Orchestrator.Engine.Checkpoint.IntervalSeconds)
	assert.True(t, cfg.Orchestrator.Metrics.Enabled)
	assert.Equal(t, "sqlite", cfg.Orchestrator.Database.Type)
	assert.Equal(t, 7, cfg.Orchestrator.Artifact.RetentionDays)
}

func TestLoadConfig_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := appconfig.LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Orchestrator.System.Timezone)
	assert.Equal(t, "INFO", cfg.Orchestrator.System.Logging.Level)
	assert.Equal(t, 3, cfg.Orchestrator.Engine.Parallelism)
	assert.Equal(t, "artifacts", cfg.Orchestrator.Artifact.Connection)
	assert.Equal(t, 30, cfg.Orchestrator.Artifact.RetentionDays)
	assert.Empty(t, cfg.Orchestrator.Database.Type)
}

func TestLoadConfig_EnvPlaceholderExpansion(t *testing.T) {
	t.Setenv("TEST_ORCH_DSN", "postgres://db:5432/orch")
	raw := `
orchestrator:
  database:
    type: postgres
    dsn: ${TEST_ORCH_DSN}
`
	cfg, err := appconfig.LoadConfig("", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "postgres://db:5432/orch", cfg.Orchestrator.Database.DSN)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ORCHESTRATOR_LOG_LEVEL", "WARN")
	t.Setenv("ORCHESTRATOR_DB_DSN", "file:override.db")

	cfg, err := appconfig.LoadConfig("", []byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.Orchestrator.System.Logging.Level)
	assert.Equal(t, "file:override.db", cfg.Orchestrator.Database.DSN)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := appconfig.LoadConfig("", []byte("orchestrator: [not a mapping"))
	assert.ErrorIs(t, err, exception.ErrConfig)
}

func TestStoragesConfig_Decode(t *testing.T) {
	cfg, err := appconfig.LoadConfig("", []byte(sampleConfig))
	require.NoError(t, err)

	storages, err := cfg.StoragesConfig()
	require.NoError(t, err)
	require.Len(t, storages, 2)

	assert.Equal(t, config.StorageConfig{Type: "local", BaseDir: "./data"}, storages["artifacts"])
	assert.Equal(t, config.StorageConfig{
		Type:            "gcs",
		BucketName:      "my-bucket",
		CredentialsFile: "/secrets/gcs.json",
	}, storages["lake"])
}

func TestStoragesConfig_EmptyBlock(t *testing.T) {
	cfg, err := appconfig.LoadConfig("", nil)
	require.NoError(t, err)
	storages, err := cfg.StoragesConfig()
	require.NoError(t, err)
	assert.Empty(t, storages)
}
