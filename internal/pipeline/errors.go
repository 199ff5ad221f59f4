package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies a phase of the pipeline for failure attribution.
type Stage string

// Pipeline stages.
const (
	StagePlanning        Stage = "planning"
	StageRefinement      Stage = "refinement"
	StageFrameExtraction Stage = "frame_extraction"
	StageSynthesis       Stage = "synthesis"
	StageMerge           Stage = "merge"
	StagePublish         Stage = "publish"
	StageRestore         Stage = "restore"
)

// Static errors for pipeline execution.
var (
	// ErrStageTimeout is returned when a stage exceeds its time budget.
	ErrStageTimeout = errors.New("pipeline: stage exceeded its time budget")
	// ErrRunTerminal is returned when a resume is requested for a run that
	// already reached a terminal state.
	ErrRunTerminal = errors.New("pipeline: run is in a terminal state")
	// ErrPromptRequired is returned when a run is started without a prompt.
	ErrPromptRequired = errors.New("pipeline: prompt is required")
	// ErrInvalidTopology is returned when a run request names an unknown topology.
	ErrInvalidTopology = errors.New("pipeline: invalid topology")
)

// StageError attributes a pipeline failure to a stage and, for per-scene
// stages, to the scene that failed. SequenceNumber is zero for run-level
// stages.
type StageError struct {
	Stage          Stage
	SequenceNumber int
	Err            error
}

func (e *StageError) Error() string {
	if e.SequenceNumber > 0 {
		return fmt.Sprintf("pipeline: %s failed for scene %d: %v", e.Stage, e.SequenceNumber, e.Err)
	}
	return fmt.Sprintf("pipeline: %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
