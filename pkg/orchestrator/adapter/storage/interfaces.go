// Package storage defines the ports for artifact blob storage. Concrete
// backends (local file system, GCS) live in subpackages and register
// themselves as providers; the artifact service only ever sees these
// interfaces.
package storage

import (
	"context"
	"io"
)

// Connection is one named storage backend ready for object operations.
type Connection interface {
	// Name returns the configured connection name.
	Name() string
	// Backend returns the backend type identifier ("local", "gcs").
	Backend() string
	// Upload writes the object, replacing any existing content.
	Upload(ctx context.Context, objectName string, data io.Reader) error
	// Download opens the object for reading. The caller closes the reader.
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectName string) error
	// List invokes fn for every object under the prefix.
	List(ctx context.Context, prefix string, fn func(objectName string) error) error
	// Close releases backend resources.
	Close() error
}

// Provider opens and caches connections of one backend type.
type Provider interface {
	// Backend returns the backend type this provider serves.
	Backend() string
	// GetConnection returns the named connection, opening it on first use.
	GetConnection(name string) (Connection, error)
	// CloseAll closes every cached connection.
	CloseAll() error
}
