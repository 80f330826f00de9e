package engine

import (
	"time"
)

// DefaultParallelism bounds concurrent job dispatch when no explicit value is given.
const DefaultParallelism = 3

// CheckpointPolicy enables automatic checkpoint triggers for one execution.
// The engine invokes the attached CheckpointTaker at the configured moments;
// the checkpoint manager itself never decides when to fire.
type CheckpointPolicy struct {
	// OnJobCompleted takes a checkpoint each time a job reaches completed.
	OnJobCompleted bool
	// OnLevelCompleted takes a checkpoint when every job of a dependency
	// level has reached a terminal state.
	OnLevelCompleted bool
	// BeforeCritical takes a checkpoint immediately before dispatching a job
	// flagged critical in its config.
	BeforeCritical bool
	// Interval takes time-based checkpoints on a wall-clock period while the
	// execution is in flight. Zero disables the timer.
	Interval time.Duration
}

// Options tunes one execution.
type Options struct {
	// Parallelism bounds the number of jobs concurrently dispatched to
	// handlers. Defaults to DefaultParallelism when zero or negative.
	Parallelism int
	// Checkpoint configures automatic checkpoint triggers.
	Checkpoint CheckpointPolicy
}

// withDefaults fills unset options from the engine-wide defaults.
func (o Options) withDefaults(defaults Options) Options {
	if o.Parallelism <= 0 {
		o.Parallelism = defaults.Parallelism
	}
	if o.Parallelism <= 0 {
		o.Parallelism = DefaultParallelism
	}
	return o
}
