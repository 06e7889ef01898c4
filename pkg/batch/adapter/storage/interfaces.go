// Package storage defines the object storage port used by exports.
package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	coreAdapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/adapter"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
)

// StorageExecutor defines generic storage operations.
type StorageExecutor interface {
	// Upload writes data to objectName in bucket. An empty bucket selects the configured default.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download returns a reader the caller must close.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is an open storage backend.
type StorageConnection interface {
	coreAdapter.ResourceConnection
	StorageExecutor
}

// Opener creates a StorageConnection for a backend type.
type Opener func(ctx context.Context, cfg config.StorageConfig, name string) (StorageConnection, error)

var (
	openers   = make(map[string]Opener)
	openersMu sync.RWMutex
)

// Register makes a backend available to Open. Backends call it from init.
func Register(storageType string, o Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[storageType] = o
}

// Open creates a connection for cfg.Type.
func Open(ctx context.Context, cfg config.StorageConfig, name string) (StorageConnection, error) {
	openersMu.RLock()
	o, ok := openers[cfg.Type]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for type '%s'", cfg.Type)
	}
	return o(ctx, cfg, name)
}
