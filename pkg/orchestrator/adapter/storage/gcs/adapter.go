// Package gcs implements the storage ports on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageAdapter "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage"
	storageConfig "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/config"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

// ProviderType identifies this backend in storage configuration.
const ProviderType = "gcs"

type gcsConnection struct {
	name   string
	bucket string
	client *gcstorage.Client
}

var _ storageAdapter.Connection = (*gcsConnection)(nil)

// NewGCSConnection opens a GCS client for the configured bucket. When a
// credentials file is configured it is used; otherwise application default
// credentials apply.
func NewGCSConnection(ctx context.Context, cfg storageConfig.StorageConfig, name string) (storageAdapter.Connection, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("gcs storage connection '%s': bucket_name must be set", name)
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage connection '%s': create client: %w", name, err)
	}
	return &gcsConnection{name: name, bucket: cfg.BucketName, client: client}, nil
}

func (c *gcsConnection) Name() string    { return c.name }
func (c *gcsConnection) Backend() string { return ProviderType }

func (c *gcsConnection) Close() error {
	logger.Debugf("GCS storage connection '%s' closed.", c.name)
	return c.client.Close()
}

func (c *gcsConnection) Upload(ctx context.Context, objectName string, data io.Reader) error {
	w := c.client.Bucket(c.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("write object '%s' to bucket '%s': %w", objectName, c.bucket, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object '%s' in bucket '%s': %w", objectName, c.bucket, err)
	}
	logger.Debugf("Stored object '%s' in bucket '%s' (gcs connection '%s').", objectName, c.bucket, c.name)
	return nil
}

func (c *gcsConnection) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	r, err := c.client.Bucket(c.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object '%s' in bucket '%s': %w", objectName, c.bucket, err)
	}
	return r, nil
}

func (c *gcsConnection) Delete(ctx context.Context, objectName string) error {
	err := c.client.Bucket(c.bucket).Object(objectName).Delete(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			logger.Warnf("Delete of missing object '%s' ignored (gcs connection '%s').", objectName, c.name)
			return nil
		}
		return fmt.Errorf("delete object '%s' from bucket '%s': %w", objectName, c.bucket, err)
	}
	return nil
}

func (c *gcsConnection) List(ctx context.Context, prefix string, fn func(objectName string) error) error {
	it := c.client.Bucket(c.bucket).Objects(ctx, &gcstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list bucket '%s' with prefix '%s': %w", c.bucket, prefix, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

// GCSProvider opens and caches GCS connections.
type GCSProvider struct {
	cfgs        storageConfig.StoragesConfig
	mu          sync.RWMutex
	connections map[string]storageAdapter.Connection
}

// NewGCSProvider creates the provider for the "gcs" backend.
func NewGCSProvider(cfgs storageConfig.StoragesConfig) storageAdapter.Provider {
	return &GCSProvider{
		cfgs:        cfgs,
		connections: make(map[string]storageAdapter.Connection),
	}
}

func (p *GCSProvider) Backend() string { return ProviderType }

func (p *GCSProvider) GetConnection(name string) (storageAdapter.Connection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	cfg, ok := p.cfgs[name]
	if !ok {
		return nil, fmt.Errorf("storage configuration for '%s' not found", name)
	}
	if cfg.Type != ProviderType {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, ProviderType, cfg.Type)
	}
	conn, err := NewGCSConnection(context.Background(), cfg, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Debugf("Opened GCS storage connection '%s'.", name)
	return conn, nil
}

func (p *GCSProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gcs storage connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing gcs storage connections: %v", errs)
	}
	return nil
}
