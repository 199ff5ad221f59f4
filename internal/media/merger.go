package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Static errors for merge operations.
var (
	// ErrUnreadableClip is returned when a merge input cannot be read.
	ErrUnreadableClip = errors.New("media: clip is not readable")
	// ErrEmptyMergeOutput is returned when the merged file reports zero duration.
	ErrEmptyMergeOutput = errors.New("media: merged output has zero duration")
)

// Merger concatenates ordered scene clips into a single video and verifies
// the result is playable.
type Merger struct {
	processor Processor
	logger    *slog.Logger
}

// NewMerger creates a merger backed by the given processor.
func NewMerger(processor Processor, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{processor: processor, logger: logger}
}

// Merge joins clipPaths in the given order into outputPath. Every input must
// exist and be readable before the join starts, and the merged file must
// report a positive duration.
func (m *Merger) Merge(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return ErrNoVideoPaths
	}

	for _, path := range clipPaths {
		f, err := os.Open(path) // #nosec G304 - path is built by trusted internal code
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUnreadableClip, path, err)
		}
		_ = f.Close()
	}

	if err := m.processor.JoinVideos(ctx, clipPaths, outputPath); err != nil {
		return fmt.Errorf("media: join clips: %w", err)
	}

	duration, err := m.processor.GetMediaDuration(ctx, outputPath)
	if err != nil {
		return fmt.Errorf("media: verify merged output: %w", err)
	}
	if duration <= 0 {
		return fmt.Errorf("%w: %s", ErrEmptyMergeOutput, outputPath)
	}

	m.logger.Info("clips merged",
		"clips", len(clipPaths),
		"output", outputPath,
		"duration_seconds", duration,
	)

	return nil
}
