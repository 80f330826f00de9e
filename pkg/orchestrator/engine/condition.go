package engine

import (
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
)

// stateOutputAccessor is the read-only view a condition predicate receives.
// It is bound to the execution's job map at evaluation time and resolves nil
// for any job that did not complete: pending, running, failed and skipped
// jobs all read as "no output".
type stateOutputAccessor struct {
	jobs model.JobStateMap
}

// GetJobOutput returns the output of a completed job, or nil.
// Conditions are side-effect-free by contract and must not mutate the result.
func (a stateOutputAccessor) GetJobOutput(jobID string) model.JobOutput {
	js, ok := a.jobs[jobID]
	if !ok || js.Status != model.JobStatusCompleted {
		return nil
	}
	return js.Output
}

var _ model.OutputAccessor = stateOutputAccessor{}
