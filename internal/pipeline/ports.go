// Package pipeline orchestrates the scene pipeline: plan scenes from a user
// prompt, refine and synthesize each scene, merge the clips in sequence
// order, and publish the final video to the durable store.
package pipeline

import (
	"context"

	"github.com/sceneweave/sceneweave-api/internal/scene"
	"github.com/sceneweave/sceneweave-api/internal/synth"
)

// Planner decomposes a user prompt into an ordered list of scene descriptors.
type Planner interface {
	PlanScenes(ctx context.Context, userPrompt string) ([]scene.Descriptor, error)
}

// Refiner turns a scene descriptor into a synthesis-ready prompt.
type Refiner interface {
	RefinePrompt(ctx context.Context, sc scene.Descriptor) (string, error)
}

// Synthesizer generates the clip for a single scene.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) error
}

// FrameExtractor extracts the last frame of a clip as a PNG image.
type FrameExtractor interface {
	ExtractLastFrame(ctx context.Context, videoPath, destPath string) error
}

// Merger concatenates ordered scene clips into a single video file.
type Merger interface {
	Merge(ctx context.Context, clipPaths []string, outputPath string) error
}

// Publisher moves scene clips and the final video into the durable store.
type Publisher interface {
	// PublishClip stores the clip for one scene and returns its location.
	PublishClip(ctx context.Context, runID string, sequenceNumber int, clipPath string) (location string, err error)

	// PublishFinal stores the merged video under the run's output name and
	// returns its location. Publishing the same run twice overwrites the
	// previous object.
	PublishFinal(ctx context.Context, runID, outputName, path string) (location string, err error)

	// FetchClip copies a previously published scene clip back into destPath.
	// Used on resume when the staged copy did not survive a restart.
	FetchClip(ctx context.Context, runID string, sequenceNumber int, destPath string) error
}

// Cleaner removes staged files once a run no longer needs them.
type Cleaner interface {
	CleanupTemp(ctx context.Context, paths []string) error
}
