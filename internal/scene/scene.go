// Package scene defines the scene descriptor, the unit of work passed
// between pipeline stages. Descriptors are created by the planner, enriched
// once with a synthesis prompt by the refiner, and immutable thereafter.
package scene

import (
	"fmt"
	"sort"
)

// Default hints applied when the planner leaves them blank.
const (
	DefaultCameraAngle = "overhead shot"
	DefaultLighting    = "natural daylight"
)

// Descriptor describes one narrative beat of the target video.
type Descriptor struct {
	// SequenceNumber defines the scene's position in the final video.
	// Unique within a run; final ordering is ascending by this field.
	SequenceNumber int `json:"sequence_number"`
	// Description is what unfolds on screen.
	Description string `json:"description"`
	// DurationEstimate is the estimated scene length in seconds. Informational only.
	DurationEstimate int `json:"duration_estimate"`
	// CameraAngle is a free-text camera hint (e.g. "low angle", "tracking shot").
	CameraAngle string `json:"camera_angle"`
	// Lighting is a free-text lighting hint (e.g. "golden hour", "neon glow").
	Lighting string `json:"lighting"`
	// SynthesisPrompt is the refined prompt for the video-synthesis service.
	// When empty, SynthesisPromptOrFallback renders one from the raw fields.
	SynthesisPrompt string `json:"synthesis_prompt,omitempty"`
}

// ApplyDefaults fills empty camera and lighting hints.
func (d *Descriptor) ApplyDefaults() {
	if d.CameraAngle == "" {
		d.CameraAngle = DefaultCameraAngle
	}
	if d.Lighting == "" {
		d.Lighting = DefaultLighting
	}
}

// FallbackPrompt renders a synthesis prompt from the raw scene fields.
// Used when prompt refinement failed or was skipped.
func (d Descriptor) FallbackPrompt() string {
	return fmt.Sprintf("%s. The camera uses %s. The lighting is %s.",
		d.Description, d.CameraAngle, d.Lighting)
}

// SynthesisPromptOrFallback returns the refined prompt when present,
// otherwise the templated fallback.
func (d Descriptor) SynthesisPromptOrFallback() string {
	if d.SynthesisPrompt != "" {
		return d.SynthesisPrompt
	}
	return d.FallbackPrompt()
}

// SortBySequence orders descriptors ascending by sequence number in place.
func SortBySequence(scenes []Descriptor) {
	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].SequenceNumber < scenes[j].SequenceNumber
	})
}
