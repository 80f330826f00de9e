package artifact_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage"
	storageConfig "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/config"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/local"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/artifact"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/infrastructure/repository/inmemory"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

func newService(t *testing.T) (*artifact.Service, *inmemory.Repository) {
	t.Helper()
	cfgs := storageConfig.StoragesConfig{
		"artifacts": {Type: local.ProviderType, BaseDir: t.TempDir()},
	}
	sel := storageAdapter.NewSelector([]storageAdapter.Provider{local.NewLocalProvider(cfgs)}, cfgs)
	repo := inmemory.NewRepository()
	return artifact.NewService(sel, repo, artifact.Config{Connection: "artifacts"}), repo
}

func TestRegisterAndDownload(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	content := "epoch,loss\n1,0.42\n2,0.31\n"

	art, err := svc.Register(ctx, artifact.RegisterInput{
		ExecutionID:   "exec-1",
		JobID:         "train",
		ArtifactType:  "metrics",
		Content:       strings.NewReader(content),
		Metadata:      map[string]interface{}{"epochs": 2},
		RetentionDays: 30,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, art.ID)
	assert.Equal(t, "exec-1", art.ExecutionID)
	assert.Equal(t, "metrics", art.ArtifactType)
	assert.Equal(t, int64(len(content)), art.SizeBytes)
	assert.Equal(t, local.ProviderType, art.StorageBackend)
	assert.Contains(t, art.StoragePath, "exec-1/train/")
	require.NotNil(t, art.ExpiresAt)

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), art.Checksum)

	r, got, err := svc.Download(ctx, art.ID)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Equal(t, art.ID, got.ID)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Register(context.Background(), artifact.RegisterInput{
		JobID:   "train",
		Content: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, exception.ErrConfig)
}

func TestRegister_PinnedNeverExpires(t *testing.T) {
	svc, _ := newService(t)
	art, err := svc.Register(context.Background(), artifact.RegisterInput{
		ExecutionID:   "exec-1",
		JobID:         "train",
		ArtifactType:  "weights",
		Content:       strings.NewReader("w"),
		Pinned:        true,
		RetentionDays: 1,
	})
	require.NoError(t, err)
	assert.True(t, art.Pinned)
	assert.Nil(t, art.ExpiresAt)
}

func TestRegister_ZeroRetentionMeansNoExpiry(t *testing.T) {
	svc, _ := newService(t)
	art, err := svc.Register(context.Background(), artifact.RegisterInput{
		ExecutionID:  "exec-1",
		JobID:        "train",
		ArtifactType: "weights",
		Content:      strings.NewReader("w"),
	})
	require.NoError(t, err)
	assert.Nil(t, art.ExpiresAt)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, exception.ErrNotFound)

	_, _, err = svc.Download(context.Background(), "missing")
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestListByExecution(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Register(ctx, artifact.RegisterInput{
			ExecutionID:  "exec-1",
			JobID:        "train",
			ArtifactType: "log",
			Content:      strings.NewReader("x"),
		})
		require.NoError(t, err)
	}
	_, err := svc.Register(ctx, artifact.RegisterInput{
		ExecutionID:  "exec-2",
		JobID:        "train",
		ArtifactType: "log",
		Content:      strings.NewReader("x"),
	})
	require.NoError(t, err)

	arts, err := svc.ListByExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Len(t, arts, 2)
}

func TestPruneExpired(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	old, err := svc.Register(ctx, artifact.RegisterInput{
		ExecutionID:   "exec-1",
		JobID:         "train",
		ArtifactType:  "scratch",
		Content:       strings.NewReader("temp"),
		RetentionDays: 1,
	})
	require.NoError(t, err)
	keep, err := svc.Register(ctx, artifact.RegisterInput{
		ExecutionID:   "exec-1",
		JobID:         "train",
		ArtifactType:  "weights",
		Content:       strings.NewReader("w"),
		RetentionDays: 365,
	})
	require.NoError(t, err)

	// Force the first artifact past its expiry in the stored record.
	stored, err := repo.FindArtifactByID(ctx, old.ID)
	require.NoError(t, err)
	past := time.Now().AddDate(0, 0, -2)
	stored.ExpiresAt = &past
	require.NoError(t, repo.SaveArtifact(ctx, stored))

	pruned, err := svc.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	_, err = svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, exception.ErrNotFound)
	_, err = svc.Get(ctx, keep.ID)
	assert.NoError(t, err)

	// The pruned artifact's content is gone from storage too.
	_, _, err = svc.Download(ctx, old.ID)
	assert.Error(t, err)
}
