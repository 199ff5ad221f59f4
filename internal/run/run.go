// Package run provides the pipeline run aggregate. A Run is the serializable
// record of one end-to-end video generation: its state machine position, the
// planned scenes, the per-scene artifacts collected so far, and the final
// published location. The orchestrator exclusively owns a Run for its
// lifetime; stage components never hold cross-call state.
package run

import (
	"errors"
	"sync"
	"time"

	"github.com/sceneweave/sceneweave-api/internal/run/id"
	"github.com/sceneweave/sceneweave-api/internal/scene"
)

// Topology is the dependency pattern used to process scenes.
type Topology string

const (
	// TopologySequential processes scenes strictly in sequence order, feeding
	// each scene's last frame to the next scene's synthesis call.
	TopologySequential Topology = "sequential"
	// TopologyParallel processes all scenes concurrently with no inter-scene
	// dependency.
	TopologyParallel Topology = "parallel"
)

// IsValid returns true if the topology is a known value.
func (t Topology) IsValid() bool {
	return t == TopologySequential || t == TopologyParallel
}

// State represents the current position of a run in the pipeline state machine.
type State string

const (
	// StatePlanning indicates the user prompt is being expanded into scenes.
	StatePlanning State = "PLANNING"
	// StateGeneratingScenes indicates per-scene refinement and synthesis.
	StateGeneratingScenes State = "GENERATING_SCENES"
	// StateMerging indicates scene clips are being concatenated.
	StateMerging State = "MERGING"
	// StatePublishing indicates the merged video is being persisted.
	StatePublishing State = "PUBLISHING"
	// StateCompleted indicates the run finished and the final location is set.
	StateCompleted State = "COMPLETED"
	// StateFailed indicates the run hit a fatal stage failure.
	StateFailed State = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("run: invalid state transition")

// validTransitions defines which state transitions are allowed. Failed is
// reachable from every non-terminal state via Fail.
var validTransitions = map[State][]State{
	StatePlanning:         {StateGeneratingScenes, StateFailed},
	StateGeneratingScenes: {StateMerging, StateFailed},
	StateMerging:          {StatePublishing, StateFailed},
	StatePublishing:       {StateCompleted, StateFailed},
	StateCompleted:        {},
	StateFailed:           {},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Artifact is a completed scene clip: its deterministic local staging path
// and its durable stored location.
type Artifact struct {
	SequenceNumber int    `json:"sequence_number"`
	ClipPath       string `json:"clip_path"`
	Location       string `json:"location"`
}

// Run is the pipeline run aggregate.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// StagingPrefix is the per-run storage namespace for all artifacts.
	StagingPrefix string `json:"staging_prefix"`
	// Topology selects sequential or parallel scene processing.
	Topology Topology `json:"topology"`
	// UserPrompt is the original free-text prompt.
	UserPrompt string `json:"user_prompt"`
	// OutputName is the requested name of the final video.
	OutputName string `json:"output_name"`
	// State is the current state machine position.
	State State `json:"state"`
	// Scenes is the planned scene list, ascending by sequence number.
	Scenes []scene.Descriptor `json:"scenes,omitempty"`
	// SceneArtifacts maps sequence number to the completed clip artifact.
	SceneArtifacts map[int]Artifact `json:"scene_artifacts,omitempty"`
	// FinalLocation is the durable location of the published video.
	FinalLocation string `json:"final_location,omitempty"`
	// Error is the first fatal error message, set when State is FAILED.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the run was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// New creates a Run in PLANNING state with a generated ID and a staging
// prefix derived from it.
func New(userPrompt, outputName string, topology Topology) *Run {
	runID := id.Generate()
	now := time.Now()
	return &Run{
		ID:             runID,
		StagingPrefix:  id.StagingPrefix(runID),
		Topology:       topology,
		UserPrompt:     userPrompt,
		OutputName:     outputName,
		State:          StatePlanning,
		SceneArtifacts: make(map[int]Artifact),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TransitionTo attempts to move the run to the given state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.State, state) {
		return ErrInvalidTransition
	}

	r.State = state
	r.UpdatedAt = time.Now()
	if state == StateCompleted || state == StateFailed {
		r.CompletedAt = r.UpdatedAt
	}
	return nil
}

// Fail moves the run to FAILED with the given reason.
// Returns ErrInvalidTransition if the run is already terminal.
func (r *Run) Fail(reason string) error {
	r.mu.Lock()
	r.Error = reason
	r.mu.Unlock()
	return r.TransitionTo(StateFailed)
}

// SetScenes records the planned scene list, ordered ascending by sequence number.
func (r *Run) SetScenes(scenes []scene.Descriptor) {
	scene.SortBySequence(scenes)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Scenes = scenes
	r.UpdatedAt = time.Now()
}

// RecordArtifact stores a completed scene artifact keyed by sequence number.
// Re-recording the same scene overwrites the previous entry, so retried
// synthesis calls are safe.
func (r *Run) RecordArtifact(a Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SceneArtifacts == nil {
		r.SceneArtifacts = make(map[int]Artifact)
	}
	r.SceneArtifacts[a.SequenceNumber] = a
	r.UpdatedAt = time.Now()
}

// ArtifactFor returns the recorded artifact for a sequence number, if any.
func (r *Run) ArtifactFor(seq int) (Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.SceneArtifacts[seq]
	return a, ok
}

// OrderedArtifacts returns the scene artifacts ascending by sequence number,
// regardless of the order in which scenes completed.
func (r *Run) OrderedArtifacts() []Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Artifact, 0, len(r.Scenes))
	for _, sc := range r.Scenes {
		if a, ok := r.SceneArtifacts[sc.SequenceNumber]; ok {
			out = append(out, a)
		}
	}
	return out
}

// AllScenesComplete reports whether every planned scene has an artifact.
func (r *Run) AllScenesComplete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.Scenes) == 0 {
		return false
	}
	for _, sc := range r.Scenes {
		if _, ok := r.SceneArtifacts[sc.SequenceNumber]; !ok {
			return false
		}
	}
	return true
}

// SetFinalLocation records the published video's durable location.
func (r *Run) SetFinalLocation(location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinalLocation = location
	r.UpdatedAt = time.Now()
}

// GetState returns the current state (thread-safe).
func (r *Run) GetState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// IsTerminal returns true if the run finished, successfully or not.
func (r *Run) IsTerminal() bool {
	s := r.GetState()
	return s == StateCompleted || s == StateFailed
}

// Clone creates a deep copy of the run for safe reads.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scenes := make([]scene.Descriptor, len(r.Scenes))
	copy(scenes, r.Scenes)
	artifacts := make(map[int]Artifact, len(r.SceneArtifacts))
	for k, v := range r.SceneArtifacts {
		artifacts[k] = v
	}

	return &Run{
		ID:             r.ID,
		StagingPrefix:  r.StagingPrefix,
		Topology:       r.Topology,
		UserPrompt:     r.UserPrompt,
		OutputName:     r.OutputName,
		State:          r.State,
		Scenes:         scenes,
		SceneArtifacts: artifacts,
		FinalLocation:  r.FinalLocation,
		Error:          r.Error,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		CompletedAt:    r.CompletedAt,
	}
}
