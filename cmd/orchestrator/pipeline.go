package main

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

// PipelineBytes holds the raw bytes of the pipeline definition file.
type PipelineBytes []byte

// backfillSpec configures an optional backfill run of the pipeline.
type backfillSpec struct {
	Enabled     bool   `yaml:"enabled"`
	StartDate   string `yaml:"startDate"` // YYYY-MM-DD
	EndDate     string `yaml:"endDate"`
	Interval    string `yaml:"interval"`
	Parallelism int    `yaml:"parallelism"`
}

// PipelineSpec is the root of the pipeline definition file. Job entries map
// straight onto model.JobConfig via its yaml tags; conditions are runtime
// constructs and cannot be expressed in the file.
type PipelineSpec struct {
	Pipeline struct {
		Name     string            `yaml:"name"`
		Jobs     []model.JobConfig `yaml:"jobs"`
		Backfill backfillSpec      `yaml:"backfill"`
	} `yaml:"pipeline"`
}

// LoadPipeline parses the pipeline definition.
func LoadPipeline(raw PipelineBytes) (*PipelineSpec, error) {
	var spec PipelineSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, exception.NewConfigError("pipeline", "failed to unmarshal pipeline definition: "+err.Error(), "")
	}
	return &spec, nil
}

// parseDate parses a YYYY-MM-DD pipeline date.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
