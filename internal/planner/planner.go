// Package planner turns a user prompt into an ordered scene list and turns
// individual scenes into synthesis-ready prompts, using the content-generation
// service. Both operations are stateless translations; all run bookkeeping
// stays with the orchestrator.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sceneweave/sceneweave-api/internal/genai"
	"github.com/sceneweave/sceneweave-api/internal/scene"
)

// Static errors for scene planning.
var (
	// ErrNoScenes is returned when the service produces an empty scene list.
	ErrNoScenes = errors.New("planner: no scenes returned")
	// ErrSceneCountOutOfBounds is returned when the scene count violates the
	// configured bounds.
	ErrSceneCountOutOfBounds = errors.New("planner: scene count out of bounds")
	// ErrNonContiguousScenes is returned when sequence numbers are not
	// contiguous starting at 1.
	ErrNonContiguousScenes = errors.New("planner: scene sequence numbers are not contiguous")
)

const scenePlanPrompt = `You are a creative director that transforms user input into cinematic movie scenes.

Requirements:
- Create between %d and %d scenes that tell a complete story with a clear beginning and a satisfying ending.
- Each scene must be 5-8 seconds long.
- No overlay text or written words may appear in any scene.
- For each scene, provide a detailed camera angle (e.g. extreme close-up, wide shot, low angle, aerial view, tracking shot) and lighting (e.g. golden hour, dramatic shadows, neon glow, soft natural light).
- Scene 1 establishes the story, middle scenes build tension, the final scene delivers a memorable conclusion.

Respond with a JSON array of objects with fields: sequence_number (starting at 1), description, duration_estimate, camera_angle, lighting.

User input: %s`

const refinePrompt = `You write prompts for a text-to-video generation model.

Rewrite the scene below as one vivid paragraph the model understands. Use explicit camera-movement vocabulary (dolly, pan, tilt, tracking, crane) and explicit lighting vocabulary. Describe only what is visible on screen; no overlay text, no sound.

Scene description: %s
Camera angle: %s
Lighting: %s

Respond with the prompt text only.`

// Service implements scene planning and prompt refinement.
type Service struct {
	client    genai.Client
	minScenes int
	maxScenes int
	logger    *slog.Logger
}

// New creates a planner Service. The scene count bounds are enforced on
// every plan; a plan outside them is a planning failure, not a truncation.
func New(client genai.Client, minScenes, maxScenes int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:    client,
		minScenes: minScenes,
		maxScenes: maxScenes,
		logger:    logger,
	}
}

// PlanScenes expands a user prompt into an ordered list of scene descriptors.
func (s *Service) PlanScenes(ctx context.Context, userPrompt string) ([]scene.Descriptor, error) {
	prompt := fmt.Sprintf(scenePlanPrompt, s.minScenes, s.maxScenes, userPrompt)

	var scenes []scene.Descriptor
	if err := s.client.GenerateJSON(ctx, prompt, &scenes); err != nil {
		return nil, fmt.Errorf("planner: generate scenes: %w", err)
	}

	if err := s.validate(scenes); err != nil {
		return nil, err
	}

	scene.SortBySequence(scenes)
	for i := range scenes {
		scenes[i].ApplyDefaults()
	}

	s.logger.Info("scene plan created",
		slog.Int("scene_count", len(scenes)),
	)

	return scenes, nil
}

// RefinePrompt produces a synthesis-optimized prompt for one scene.
func (s *Service) RefinePrompt(ctx context.Context, sc scene.Descriptor) (string, error) {
	prompt := fmt.Sprintf(refinePrompt, sc.Description, sc.CameraAngle, sc.Lighting)

	text, err := s.client.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("planner: refine scene %d: %w", sc.SequenceNumber, err)
	}
	return text, nil
}

// validate checks count bounds and contiguous numbering from 1.
func (s *Service) validate(scenes []scene.Descriptor) error {
	if len(scenes) == 0 {
		return ErrNoScenes
	}
	if len(scenes) < s.minScenes || len(scenes) > s.maxScenes {
		return fmt.Errorf("%w: got %d, want %d-%d", ErrSceneCountOutOfBounds, len(scenes), s.minScenes, s.maxScenes)
	}

	seen := make(map[int]bool, len(scenes))
	for _, sc := range scenes {
		if sc.SequenceNumber < 1 || sc.SequenceNumber > len(scenes) || seen[sc.SequenceNumber] {
			return fmt.Errorf("%w: sequence number %d", ErrNonContiguousScenes, sc.SequenceNumber)
		}
		seen[sc.SequenceNumber] = true
	}
	return nil
}
