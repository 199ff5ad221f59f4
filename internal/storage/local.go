package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage implements the Storage interface using local disk.
// The staging root holds in-flight run files; the durable store is a
// separate directory tree keyed by object key.
type LocalStorage struct {
	storeDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter is the staging root and storeDir is the root of
// the durable store. Empty values default to subdirectories of
// os.TempDir(). Both directories are created if they don't exist.
func NewLocalStorage(tempDir, storeDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "sceneweave")
	}
	if storeDir == "" {
		storeDir = filepath.Join(os.TempDir(), "sceneweave-store")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	if err := os.MkdirAll(storeDir, 0750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	return &LocalStorage{storeDir: storeDir}, nil
}

// CleanupTemp removes the specified staged files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Put writes data to the durable store under the given key and returns a
// file:// location. An existing object under the same key is overwritten.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	destPath := filepath.Join(s.storeDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return "", fmt.Errorf("create store path for %s: %w", key, err)
	}

	f, err := os.Create(destPath) // #nosec G304 - key is built by trusted internal code
	if err != nil {
		return "", fmt.Errorf("create store file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return "", fmt.Errorf("write store file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close store file: %w", err)
	}

	absPath, err := filepath.Abs(destPath)
	if err != nil {
		return "", fmt.Errorf("resolve store path: %w", err)
	}

	return "file://" + filepath.ToSlash(absPath), nil
}

// Get reads an object from the durable store.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(filepath.Join(s.storeDir, filepath.FromSlash(key))) // #nosec G304 - key is built by trusted internal code
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("open store file: %w", err)
	}

	return f, nil
}
