package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sceneweave/sceneweave-api/internal/run/id"
	"github.com/sceneweave/sceneweave-api/internal/storage"
)

// StorePublisher publishes clips and final videos through the Storage port.
// Objects are keyed under the run's staging prefix, so re-publishing a run
// overwrites the previous objects.
type StorePublisher struct {
	store storage.Storage
}

// NewStorePublisher creates a publisher backed by the given store.
func NewStorePublisher(store storage.Storage) *StorePublisher {
	return &StorePublisher{store: store}
}

// PublishClip stores the clip for one scene and returns its location.
func (p *StorePublisher) PublishClip(ctx context.Context, runID string, sequenceNumber int, clipPath string) (string, error) {
	key := fmt.Sprintf("%s/scene_%d.mp4", id.StagingPrefix(runID), sequenceNumber)
	return p.publishFile(ctx, key, clipPath)
}

// PublishFinal stores the merged video under the run's output name and
// returns its location.
func (p *StorePublisher) PublishFinal(ctx context.Context, runID, outputName, path string) (string, error) {
	key := fmt.Sprintf("%s/%s", id.StagingPrefix(runID), outputName)
	return p.publishFile(ctx, key, path)
}

// FetchClip copies a published scene clip from the durable store back into
// destPath, overwriting any partial file there.
func (p *StorePublisher) FetchClip(ctx context.Context, runID string, sequenceNumber int, destPath string) error {
	key := fmt.Sprintf("%s/scene_%d.mp4", id.StagingPrefix(runID), sequenceNumber)

	reader, err := p.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("pipeline: fetch %s: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	f, err := os.Create(destPath) // #nosec G304 - path is built by trusted internal code
	if err != nil {
		return fmt.Errorf("pipeline: create clip file: %w", err)
	}

	if _, err := io.Copy(f, reader); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("pipeline: restore %s: %w", key, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("pipeline: close clip file: %w", err)
	}

	return nil
}

func (p *StorePublisher) publishFile(ctx context.Context, key, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is built by trusted internal code
	if err != nil {
		return "", fmt.Errorf("pipeline: open file for publish: %w", err)
	}
	defer func() { _ = f.Close() }()

	location, err := p.store.Put(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("pipeline: store %s: %w", key, err)
	}

	return location, nil
}
