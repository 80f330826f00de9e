// Package local implements the storage ports on the local file system.
// Objects are plain files under the connection's configured base directory.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	storageAdapter "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage"
	storageConfig "github.com/canfieldjuan/finetunelab/pkg/orchestrator/adapter/storage/config"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

// ProviderType identifies this backend in storage configuration.
const ProviderType = "local"

type localConnection struct {
	name    string
	baseDir string
}

var _ storageAdapter.Connection = (*localConnection)(nil)

// NewLocalConnection opens a connection rooted at cfg.BaseDir, creating the
// directory when missing.
func NewLocalConnection(cfg storageConfig.StorageConfig, name string) (storageAdapter.Connection, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage connection '%s': base_dir must be set", name)
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err != nil && os.IsNotExist(err):
		if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
			return nil, fmt.Errorf("local storage connection '%s': create base_dir '%s': %w", name, cfg.BaseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage connection '%s': stat base_dir '%s': %w", name, cfg.BaseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage connection '%s': base_dir '%s' is not a directory", name, cfg.BaseDir)
	}
	return &localConnection{name: name, baseDir: cfg.BaseDir}, nil
}

func (c *localConnection) Name() string    { return c.name }
func (c *localConnection) Backend() string { return ProviderType }

func (c *localConnection) Close() error {
	logger.Debugf("Local storage connection '%s' closed.", c.name)
	return nil
}

func (c *localConnection) Upload(ctx context.Context, objectName string, data io.Reader) error {
	fullPath, err := c.resolvePath(objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create directory for '%s': %w", fullPath, err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("create file '%s': %w", fullPath, err)
	}
	defer file.Close()
	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("write '%s': %w", fullPath, err)
	}
	logger.Debugf("Stored object '%s' (local connection '%s').", objectName, c.name)
	return nil
}

func (c *localConnection) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := c.resolvePath(objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("open '%s': %w", fullPath, err)
	}
	return file, nil
}

func (c *localConnection) Delete(ctx context.Context, objectName string) error {
	fullPath, err := c.resolvePath(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Delete of missing object '%s' ignored (local connection '%s').", objectName, c.name)
			return nil
		}
		return fmt.Errorf("delete '%s': %w", fullPath, err)
	}
	return nil
}

func (c *localConnection) List(ctx context.Context, prefix string, fn func(objectName string) error) error {
	return filepath.WalkDir(c.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		objectName, err := filepath.Rel(c.baseDir, path)
		if err != nil {
			return err
		}
		objectName = filepath.ToSlash(objectName)
		if !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		return fn(objectName)
	})
}

// resolvePath joins the object name under baseDir and rejects paths that
// escape it.
func (c *localConnection) resolvePath(objectName string) (string, error) {
	fullPath := filepath.Join(c.baseDir, filepath.FromSlash(objectName))
	absBase, err := filepath.Abs(c.baseDir)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("object name '%s' escapes base_dir '%s'", objectName, c.baseDir)
	}
	return fullPath, nil
}

// LocalProvider opens and caches local connections.
type LocalProvider struct {
	cfgs        storageConfig.StoragesConfig
	mu          sync.RWMutex
	connections map[string]storageAdapter.Connection
}

// NewLocalProvider creates the provider for the "local" backend.
func NewLocalProvider(cfgs storageConfig.StoragesConfig) storageAdapter.Provider {
	return &LocalProvider{
		cfgs:        cfgs,
		connections: make(map[string]storageAdapter.Connection),
	}
}

func (p *LocalProvider) Backend() string { return ProviderType }

func (p *LocalProvider) GetConnection(name string) (storageAdapter.Connection, error) {
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
	conn, err := NewLocalConnection(cfg, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Debugf("Opened local storage connection '%s'.", name)
	return conn, nil
}

func (p *LocalProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close local storage connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing local storage connections: %v", errs)
	}
	return nil
}
