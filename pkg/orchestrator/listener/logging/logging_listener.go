// Package logging provides an ExecutionListener that logs job settlements
// and execution progress.
package logging

import (
	"context"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/engine"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

// LoggingListener logs every job settlement at Info level.
type LoggingListener struct{}

// NewLoggingListener creates a LoggingListener.
func NewLoggingListener() engine.ExecutionListener {
	return &LoggingListener{}
}

func (l *LoggingListener) OnJobCompleted(ctx context.Context, executionID string, state *model.JobState) {
	logger.Infof("ExecutionListener: job '%s' completed (execution %s).", state.JobID, executionID)
}

func (l *LoggingListener) OnJobFailed(ctx context.Context, executionID string, state *model.JobState) {
	logger.Infof("ExecutionListener: job '%s' failed (execution %s): %s", state.JobID, executionID, state.Error)
}

func (l *LoggingListener) OnJobSkipped(ctx context.Context, executionID string, state *model.JobState) {
	logger.Infof("ExecutionListener: job '%s' skipped (execution %s).", state.JobID, executionID)
}

func (l *LoggingListener) OnProgress(ctx context.Context, executionID string, completed, total int) {
	logger.Infof("ExecutionListener: execution %s progress %d/%d.", executionID, completed, total)
}

var _ engine.ExecutionListener = (*LoggingListener)(nil)
