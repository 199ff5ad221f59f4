// Package media provides video processing for scene clips.
package media

import "context"

// Processor defines the interface for video processing operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// JoinVideos concatenates multiple video files into a single output file.
	// It first attempts a fast copy (no re-encoding) and falls back to re-encoding
	// with libx264/aac if the copy fails due to incompatible codecs.
	JoinVideos(ctx context.Context, videoPaths []string, output string) error

	// GetMediaDuration returns the duration in seconds of a media file.
	GetMediaDuration(ctx context.Context, path string) (float64, error)

	// ExtractLastFrame extracts the last frame of a video as a PNG image
	// written to destPath. An existing file at destPath is overwritten.
	ExtractLastFrame(ctx context.Context, videoPath, destPath string) error
}
