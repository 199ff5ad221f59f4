// Package storage provides temporary and durable file storage capabilities.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a durable-store key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Storage defines the interface for staging cleanup and durable file
// storage. In-flight scene clips live under the pipeline's staging tree;
// the durable store receives published clips and the final merged video.
type Storage interface {
	// CleanupTemp removes the specified staged files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Put writes data to the durable store under the given key and returns
	// the location of the stored object. Writing an existing key overwrites
	// the previous object.
	Put(ctx context.Context, key string, data io.Reader) (location string, err error)

	// Get reads an object from the durable store.
	// The caller is responsible for closing the returned ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
