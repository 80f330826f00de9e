// Package artifact stores and tracks named job outputs (model weights,
// datasets, metric files). Content lives in a configured storage backend;
// metadata lives in the artifact repository.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	storageAdapter "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/repository"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

const moduleName = "artifact"

// RegisterInput describes one artifact to store.
type RegisterInput struct {
	ExecutionID   string
	JobID         string
	ArtifactType  string
	Content       io.Reader
	Metadata      map[string]interface{}
	Pinned        bool
	RetentionDays int // Zero means no expiry.
}

// Config selects the storage connection artifacts are written to.
type Config struct {
	Connection string `yaml:"connection" mapstructure:"connection"`
}

// Service registers, serves and prunes artifacts.
type Service struct {
	selector   *storageAdapter.Selector
	repo       repository.ArtifactRepository
	connection string
	clock      func() time.Time
}

// NewService creates a Service storing content on the configured connection.
func NewService(selector *storageAdapter.Selector, repo repository.ArtifactRepository, cfg Config) *Service {
	return &Service{
		selector:   selector,
		repo:       repo,
		connection: cfg.Connection,
		clock:      time.Now,
	}
}

// Register stores the artifact content and records its metadata. The content
// is hashed (sha256) and sized while streaming to storage; expiry is derived
// from RetentionDays unless the artifact is pinned.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Artifact, error) {
	if in.ExecutionID == "" || in.JobID == "" {
		return nil, exception.NewConfigError(moduleName, "artifact requires executionId and jobId", "")
	}
	conn, err := s.selector.Open(s.connection)
	if err != nil {
		return nil, err
	}

	id := model.NewID()
	objectName := fmt.Sprintf("%s/%s/%s", in.ExecutionID, in.JobID, id)

	hasher := sha256.New()
	var buf bytes.Buffer
	size, err := io.Copy(io.MultiWriter(hasher, &buf), in.Content)
	if err != nil {
		return nil, fmt.Errorf("read artifact content: %w", err)
	}
	if err := conn.Upload(ctx, objectName, &buf); err != nil {
		return nil, err
	}

	art := &model.Artifact{
		ID:             id,
		ExecutionID:    in.ExecutionID,
		JobID:          in.JobID,
		ArtifactType:   in.ArtifactType,
		StoragePath:    objectName,
		StorageBackend: conn.Backend(),
		SizeBytes:      size,
		Checksum:       hex.EncodeToString(hasher.Sum(nil)),
		Metadata:       in.Metadata,
		Pinned:         in.Pinned,
		CreatedAt:      s.clock(),
	}
	if !in.Pinned && in.RetentionDays > 0 {
		expires := art.CreatedAt.AddDate(0, 0, in.RetentionDays)
		art.ExpiresAt = &expires
	}
	if err := s.repo.SaveArtifact(ctx, art); err != nil {
		// Content without a record is unreachable; best-effort cleanup.
		if derr := conn.Delete(ctx, objectName); derr != nil {
			logger.Warnf("Failed to remove orphaned artifact object '%s': %v", objectName, derr)
		}
		return nil, err
	}
	logger.Debugf("Registered artifact %s (%d bytes) for job '%s' of execution %s.", id, size, in.JobID, in.ExecutionID)
	return art, nil
}

// Get returns one artifact's metadata.
func (s *Service) Get(ctx context.Context, id string) (*model.Artifact, error) {
	art, err := s.repo.FindArtifactByID(ctx, id)
	if err != nil {
		return nil, exception.NewNotFoundError(moduleName, "artifact not found", id)
	}
	return art, nil
}

// ListByExecution returns all artifacts registered under an execution.
func (s *Service) ListByExecution(ctx context.Context, executionID string) ([]*model.Artifact, error) {
	return s.repo.FindArtifactsByExecutionID(ctx, executionID)
}

// Download opens the artifact's content. The caller closes the reader.
func (s *Service) Download(ctx context.Context, id string) (io.ReadCloser, *model.Artifact, error) {
	art, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	conn, err := s.selector.Open(s.connection)
	if err != nil {
		return nil, nil, err
	}
	r, err := conn.Download(ctx, art.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return r, art, nil
}

// PruneExpired deletes content and records of artifacts past their expiry.
// Pinned artifacts never expire. Returns the number of artifacts removed.
func (s *Service) PruneExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.FindExpiredArtifacts(ctx, s.clock())
	if err != nil {
		return 0, err
	}
	conn, err := s.selector.Open(s.connection)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, art := range expired {
		if art.Pinned {
			continue
		}
		if err := conn.Delete(ctx, art.StoragePath); err != nil {
			logger.Warnf("Failed to delete expired artifact object '%s': %v", art.StoragePath, err)
			continue
		}
		if err := s.repo.DeleteArtifact(ctx, art.ID); err != nil {
			logger.Warnf("Failed to delete expired artifact record %s: %v", art.ID, err)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		logger.Infof("Pruned %d expired artifact(s).", pruned)
	}
	return pruned, nil
}
