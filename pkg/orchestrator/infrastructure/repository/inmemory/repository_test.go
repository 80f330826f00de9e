package inmemory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/infrastructure/repository/inmemory"
)

func newExecution(name string) *model.Execution {
	return model.NewExecution(name, []model.JobConfig{{ID: "a", Name: "A", Type: "noop"}})
}

func TestExecutionRoundTrip(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()

	exec := newExecution("first")
	require.NoError(t, repo.SaveExecution(ctx, exec))

	got, err := repo.FindExecutionByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, got.ID)
	assert.Equal(t, "first", got.Name)

	// Stored records are isolated from both the saved value and later reads.
	exec.Jobs["a"].MarkAsRunning()
	got2, err := repo.FindExecutionByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got2.Jobs["a"].Status)

	got2.Name = "mutated"
	got3, err := repo.FindExecutionByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got3.Name)
}

func TestExecutionUpdateAndErrors(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()

	exec := newExecution("run")
	assert.ErrorIs(t, repo.UpdateExecution(ctx, exec), repository.ErrExecutionNotFound)

	require.NoError(t, repo.SaveExecution(ctx, exec))
	exec.MarkFinished(model.ExecutionStatusCompleted)
	require.NoError(t, repo.UpdateExecution(ctx, exec))

	got, err := repo.FindExecutionByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, got.Status)

	_, err = repo.FindExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrExecutionNotFound)
}

func TestListExecutions_OrderAndPagination(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		exec := newExecution("run")
		exec.CreatedAt = time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, repo.SaveExecution(ctx, exec))
		ids = append(ids, exec.ID)
	}

	all, err := repo.ListExecutions(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	// Newest first.
	assert.Equal(t, ids[4], all[0].ID)
	assert.Equal(t, ids[0], all[4].ID)

	page, err := repo.ListExecutions(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	// Offset past the end yields an empty page, not a panic.
	empty, err := repo.ListExecutions(ctx, 10, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCheckpointFilterAndLimit(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()

	mk := func(executionID string, trigger model.CheckpointTrigger, at time.Time) *model.Checkpoint {
		cp := model.NewCheckpoint(executionID, "cp", trigger, model.JobStateMap{}, nil)
		cp.CreatedAt = at
		require.NoError(t, repo.SaveCheckpoint(ctx, cp))
		return cp
	}

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	mk("exec-1", model.TriggerManual, base)
	newest := mk("exec-1", model.TriggerLevelCompleted, base.Add(2*time.Hour))
	mk("exec-2", model.TriggerManual, base.Add(time.Hour))

	all, err := repo.ListCheckpoints(ctx, repository.CheckpointFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forExec, err := repo.ListCheckpoints(ctx, repository.CheckpointFilter{ExecutionID: "exec-1"})
	require.NoError(t, err)
	require.Len(t, forExec, 2)
	assert.Equal(t, newest.ID, forExec[0].ID)

	byTrigger, err := repo.ListCheckpoints(ctx, repository.CheckpointFilter{Trigger: model.TriggerManual})
	require.NoError(t, err)
	assert.Len(t, byTrigger, 2)

	limited, err := repo.ListCheckpoints(ctx, repository.CheckpointFilter{ExecutionID: "exec-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newest.ID, limited[0].ID)

	_, err = repo.FindCheckpointByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrCheckpointNotFound)
}

func TestBackfillRoundTrip(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()

	bf := model.NewBackfillExecution("tpl", "nightly",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		model.IntervalDay, 3)

	assert.ErrorIs(t, repo.UpdateBackfillExecution(ctx, bf), repository.ErrBackfillNotFound)
	require.NoError(t, repo.SaveBackfillExecution(ctx, bf))

	bf.CompletedExecutions = 3
	bf.MarkFinished()
	require.NoError(t, repo.UpdateBackfillExecution(ctx, bf))

	got, err := repo.FindBackfillExecutionByID(ctx, bf.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, got.Status)
	assert.Equal(t, 3, got.CompletedExecutions)

	_, err = repo.FindBackfillExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrBackfillNotFound)
}

func TestArtifactQueries(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mk := func(executionID string, pinned bool, expires *time.Time, created time.Time) *model.Artifact {
		a := &model.Artifact{
			ID:          model.NewID(),
			ExecutionID: executionID,
			JobID:       "train",
			Pinned:      pinned,
			ExpiresAt:   expires,
			CreatedAt:   created,
		}
		require.NoError(t, repo.SaveArtifact(ctx, a))
		return a
	}

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	expired := mk("exec-1", false, &past, now.Add(-3*time.Hour))
	fresh := mk("exec-1", false, &future, now.Add(-2*time.Hour))
	pinned := mk("exec-1", true, &past, now.Add(-1*time.Hour))
	mk("exec-2", false, nil, now)

	byExec, err := repo.FindArtifactsByExecutionID(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, byExec, 3)
	// Oldest first.
	assert.Equal(t, expired.ID, byExec[0].ID)
	assert.Equal(t, pinned.ID, byExec[2].ID)

	// Only unpinned artifacts past their expiry are reclaimable.
	reclaimable, err := repo.FindExpiredArtifacts(ctx, now)
	require.NoError(t, err)
	require.Len(t, reclaimable, 1)
	assert.Equal(t, expired.ID, reclaimable[0].ID)

	require.NoError(t, repo.DeleteArtifact(ctx, expired.ID))
	_, err = repo.FindArtifactByID(ctx, expired.ID)
	assert.ErrorIs(t, err, repository.ErrArtifactNotFound)
	assert.ErrorIs(t, repo.DeleteArtifact(ctx, expired.ID), repository.ErrArtifactNotFound)

	// The fresh artifact is untouched.
	got, err := repo.FindArtifactByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
}
