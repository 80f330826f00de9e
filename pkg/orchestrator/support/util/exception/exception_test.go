package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

func TestOrchestratorError_KindMatching(t *testing.T) {
	err := exception.NewConfigError("dag", "duplicate job id", "a")

	assert.ErrorIs(t, err, exception.ErrConfig)
	assert.NotErrorIs(t, err, exception.ErrCycle)
	assert.Equal(t, "dag", err.Module)
	assert.Equal(t, "a", err.Ref)
	assert.Contains(t, err.Error(), "dag: duplicate job id (ref: a)")
}

func TestOrchestratorError_WrappedCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := exception.NewHandlerExecutionError("engine", "extract", cause)

	// Both the kind sentinel and the cause are reachable through errors.Is.
	assert.ErrorIs(t, err, exception.ErrHandlerExecution)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestOrchestratorError_ThroughWrapping(t *testing.T) {
	inner := exception.NewNotFoundError("repository", "execution does not exist", "exec-1")
	wrapped := fmt.Errorf("loading checkpoint source: %w", inner)

	assert.ErrorIs(t, wrapped, exception.ErrNotFound)
	assert.Equal(t, exception.ErrNotFound, exception.KindOf(wrapped))
	assert.Equal(t, "exec-1", exception.RefOf(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Nil(t, exception.KindOf(errors.New("plain")))
	assert.Nil(t, exception.KindOf(nil))
	assert.Empty(t, exception.RefOf(errors.New("plain")))
}

func TestNewHandlerNotFoundError(t *testing.T) {
	err := exception.NewHandlerNotFoundError("registry", "spark_submit")
	assert.ErrorIs(t, err, exception.ErrHandlerNotFound)
	assert.Equal(t, "spark_submit", err.Ref)
	assert.Contains(t, err.Error(), "no handler registered for job type 'spark_submit'")
}

func TestNewCancellationRejectedError(t *testing.T) {
	err := exception.NewCancellationRejectedError("engine", "exec-1", "completed")
	assert.ErrorIs(t, err, exception.ErrCancellationRejected)
	assert.Contains(t, err.Error(), "terminal state 'completed'")
	assert.Equal(t, "exec-1", err.Ref)
}

func TestNewConflictError(t *testing.T) {
	err := exception.NewConflictError("repository", "execution already exists", "exec-1")
	assert.ErrorIs(t, err, exception.ErrConflict)
}
