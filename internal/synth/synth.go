// Package synth turns a refined scene prompt into a downloaded video clip.
// It drives the asynchronous generation operation end to end: submit,
// poll until done, download the produced clip.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sceneweave/sceneweave-api/internal/veo"
)

// Static errors for scene synthesis.
var (
	// ErrNoVideoProduced is returned when the operation completes without a clip.
	ErrNoVideoProduced = errors.New("synth: operation completed without producing a video")
	// ErrOperationFailed is returned when the operation completes with an error.
	ErrOperationFailed = errors.New("synth: operation failed")
)

// Request describes a single scene synthesis.
type Request struct {
	SequenceNumber int
	Prompt         string
	// ReferenceImagePath is the optional first-frame reference. Empty means
	// the scene is generated from the prompt alone.
	ReferenceImagePath string
	// DestPath is where the downloaded clip is written. An existing file is
	// overwritten.
	DestPath string
}

// Service synthesizes scene clips through a video-generation client.
type Service struct {
	client       veo.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// New creates a synthesis service polling at the given interval.
func New(client veo.Client, pollInterval time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:       client,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Synthesize generates the clip for one scene and writes it to req.DestPath.
// The context deadline bounds the whole operation including polling and
// download.
func (s *Service) Synthesize(ctx context.Context, req Request) error {
	var imageBytes []byte
	if req.ReferenceImagePath != "" {
		data, err := os.ReadFile(req.ReferenceImagePath) // #nosec G304 - path is built by trusted internal code
		if err != nil {
			return fmt.Errorf("synth: read reference image for scene %d: %w", req.SequenceNumber, err)
		}
		imageBytes = data
	}

	operationName, err := s.client.Submit(ctx, veo.SubmitRequest{
		Prompt:        req.Prompt,
		ImageBytes:    imageBytes,
		ImageMIMEType: "image/png",
	})
	if err != nil {
		return fmt.Errorf("synth: submit scene %d: %w", req.SequenceNumber, err)
	}

	s.logger.Info("scene synthesis submitted",
		"scene", req.SequenceNumber,
		"operation", operationName,
	)

	videoURI, err := s.awaitCompletion(ctx, req.SequenceNumber, operationName)
	if err != nil {
		return err
	}

	if err := s.client.Download(ctx, videoURI, req.DestPath); err != nil {
		return fmt.Errorf("synth: download scene %d: %w", req.SequenceNumber, err)
	}

	s.logger.Info("scene clip downloaded",
		"scene", req.SequenceNumber,
		"path", req.DestPath,
	)

	return nil
}

// awaitCompletion polls the operation until it finishes and returns the clip URI.
func (s *Service) awaitCompletion(ctx context.Context, sequenceNumber int, operationName string) (string, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		result, err := s.client.Poll(ctx, operationName)
		if err != nil {
			return "", fmt.Errorf("synth: poll scene %d: %w", sequenceNumber, err)
		}

		if result.Done {
			if result.Error != "" {
				return "", fmt.Errorf("%w: scene %d: %s", ErrOperationFailed, sequenceNumber, result.Error)
			}
			if result.VideoURI == "" {
				return "", fmt.Errorf("%w: scene %d", ErrNoVideoProduced, sequenceNumber)
			}
			return result.VideoURI, nil
		}

		s.logger.Debug("scene synthesis in progress",
			"scene", sequenceNumber,
			"operation", operationName,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("synth: scene %d: %w", sequenceNumber, ctx.Err())
		case <-ticker.C:
		}
	}
}
