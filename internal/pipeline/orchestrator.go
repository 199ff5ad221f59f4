package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/sceneweave/sceneweave-api/internal/run"
	"github.com/sceneweave/sceneweave-api/internal/scene"
	"github.com/sceneweave/sceneweave-api/internal/synth"
)

// DefaultOutputName is used when a run request does not name the final video.
const DefaultOutputName = "final_video.mp4"

// Config holds the per-stage time budgets and execution settings for the
// orchestrator.
type Config struct {
	PlanningTimeout  time.Duration
	RefineTimeout    time.Duration
	SynthesisTimeout time.Duration
	MergeTimeout     time.Duration
	PublishTimeout   time.Duration

	// PublishRetries is the number of extra attempts for store writes.
	// Other stages fail on the first error.
	PublishRetries int
	// RetryBackoff is the initial backoff between publish attempts.
	RetryBackoff time.Duration

	// TempDir is the root of the local staging area. Each run stages its
	// clips and reference frames under TempDir/<run_id>/.
	TempDir string

	// DefaultTopology is used when a run request does not choose one.
	DefaultTopology run.Topology
}

// RunRequest describes one requested video generation.
type RunRequest struct {
	Prompt     string
	OutputName string
	Topology   run.Topology
}

// Orchestrator drives runs through the pipeline state machine: plan scenes,
// refine and synthesize each scene, merge the clips ascending by sequence
// number, publish the result. Every state transition and recorded artifact
// is persisted, so an interrupted run can be resumed without redoing
// completed scenes.
type Orchestrator struct {
	planner     Planner
	refiner     Refiner
	synthesizer Synthesizer
	frames      FrameExtractor
	merger      Merger
	publisher   Publisher
	cleaner     Cleaner
	repo        run.Repository
	pool        *ants.Pool
	cfg         Config
	logger      *slog.Logger
}

// New creates an orchestrator. The pool bounds concurrent scene synthesis
// for parallel-topology runs.
func New(
	planner Planner,
	refiner Refiner,
	synthesizer Synthesizer,
	frames FrameExtractor,
	merger Merger,
	publisher Publisher,
	cleaner Cleaner,
	repo run.Repository,
	pool *ants.Pool,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		planner:     planner,
		refiner:     refiner,
		synthesizer: synthesizer,
		frames:      frames,
		merger:      merger,
		publisher:   publisher,
		cleaner:     cleaner,
		repo:        repo,
		pool:        pool,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateRun validates the request and persists a new run in PLANNING state
// without executing it. Callers drive execution with ExecuteRun, typically
// from a background goroutine.
func (o *Orchestrator) CreateRun(ctx context.Context, req RunRequest) (*run.Run, error) {
	if req.Prompt == "" {
		return nil, ErrPromptRequired
	}
	if req.OutputName == "" {
		req.OutputName = DefaultOutputName
	}
	if req.Topology == "" {
		req.Topology = o.cfg.DefaultTopology
	}
	if !req.Topology.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopology, req.Topology)
	}

	r := run.New(req.Prompt, req.OutputName, req.Topology)
	if err := o.repo.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("pipeline: save new run: %w", err)
	}

	o.logger.Info("run created",
		"run_id", r.ID,
		"topology", r.Topology,
		"output_name", r.OutputName,
	)

	return r, nil
}

// StartRun creates a new run and executes the pipeline to completion.
// The returned run reflects the final state; the error carries the failing
// stage when the run did not complete.
func (o *Orchestrator) StartRun(ctx context.Context, req RunRequest) (*run.Run, error) {
	r, err := o.CreateRun(ctx, req)
	if err != nil {
		return nil, err
	}
	return r, o.execute(ctx, r)
}

// ExecuteRun drives a previously created run to a terminal state. It is the
// same entry point used for resuming interrupted runs; a fresh run simply
// resumes from PLANNING.
func (o *Orchestrator) ExecuteRun(ctx context.Context, runID string) (*run.Run, error) {
	return o.ResumeRun(ctx, runID)
}

// GetRun returns the persisted run with the given ID.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (*run.Run, error) {
	return o.repo.FindByID(ctx, runID)
}

// ListRuns returns all persisted runs.
func (o *Orchestrator) ListRuns(ctx context.Context) ([]*run.Run, error) {
	return o.repo.List(ctx)
}

// ResumeRun re-executes an interrupted run from its persisted state.
// Scenes with a recorded artifact are not re-synthesized. Terminal runs
// are returned unchanged with ErrRunTerminal.
func (o *Orchestrator) ResumeRun(ctx context.Context, runID string) (*run.Run, error) {
	r, err := o.repo.FindByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if r.IsTerminal() {
		return r, ErrRunTerminal
	}

	o.logger.Info("run resumed",
		"run_id", r.ID,
		"state", r.GetState(),
		"completed_scenes", len(r.OrderedArtifacts()),
	)

	return r, o.execute(ctx, r)
}

// execute drives the run from its current state to a terminal one. Any
// stage failure marks the run FAILED with the stage attribution recorded.
func (o *Orchestrator) execute(ctx context.Context, r *run.Run) error {
	if err := o.runPipeline(ctx, r); err != nil {
		if failErr := r.Fail(err.Error()); failErr != nil {
			o.logger.Error("failed to mark run as failed", "run_id", r.ID, "error", failErr)
		}
		if saveErr := o.repo.Save(ctx, r); saveErr != nil {
			o.logger.Error("failed to persist failed run", "run_id", r.ID, "error", saveErr)
		}
		o.logger.Error("run failed", "run_id", r.ID, "error", err)
		return err
	}
	return nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, r *run.Run) error {
	if err := os.MkdirAll(o.runDir(r.ID), 0750); err != nil {
		return fmt.Errorf("pipeline: create staging directory: %w", err)
	}

	if r.GetState() == run.StatePlanning {
		if err := o.plan(ctx, r); err != nil {
			return err
		}
		if err := o.transition(ctx, r, run.StateGeneratingScenes); err != nil {
			return err
		}
	}

	if r.GetState() == run.StateGeneratingScenes {
		if err := o.generateScenes(ctx, r); err != nil {
			return err
		}
		if err := o.transition(ctx, r, run.StateMerging); err != nil {
			return err
		}
	}

	if r.GetState() == run.StateMerging {
		if err := o.merge(ctx, r); err != nil {
			return err
		}
		if err := o.transition(ctx, r, run.StatePublishing); err != nil {
			return err
		}
	}

	if r.GetState() == run.StatePublishing {
		if err := o.publish(ctx, r); err != nil {
			return err
		}
		if err := o.transition(ctx, r, run.StateCompleted); err != nil {
			return err
		}
	}

	o.cleanupStaging(ctx, r)

	o.logger.Info("run completed",
		"run_id", r.ID,
		"scenes", len(r.Scenes),
		"location", r.FinalLocation,
	)

	return nil
}

// cleanupStaging removes the run's staged clips, reference frames, and the
// merged output once everything is durably published. Failures are logged,
// never fatal.
func (o *Orchestrator) cleanupStaging(ctx context.Context, r *run.Run) {
	paths := make([]string, 0, 2*len(r.Scenes)+1)
	for _, sc := range r.Scenes {
		paths = append(paths,
			o.clipPath(r.ID, sc.SequenceNumber),
			o.refFramePath(r.ID, sc.SequenceNumber),
		)
	}
	paths = append(paths, o.outputPath(r))

	if err := o.cleaner.CleanupTemp(ctx, paths); err != nil {
		o.logger.Warn("staging cleanup failed", "run_id", r.ID, "error", err)
	}
}

// plan expands the user prompt into the scene list.
func (o *Orchestrator) plan(ctx context.Context, r *run.Run) error {
	if len(r.Scenes) > 0 {
		// Resumed run that already planned.
		return nil
	}

	exec := stageExecutor{timeout: o.cfg.PlanningTimeout}
	return exec.run(ctx, StagePlanning, 0, func(ctx context.Context) error {
		scenes, err := o.planner.PlanScenes(ctx, r.UserPrompt)
		if err != nil {
			return err
		}
		r.SetScenes(scenes)
		return o.repo.Save(ctx, r)
	})
}

// generateScenes processes every scene that does not already have a
// recorded artifact, using the run's topology.
func (o *Orchestrator) generateScenes(ctx context.Context, r *run.Run) error {
	switch r.Topology {
	case run.TopologySequential:
		return o.generateSequential(ctx, r)
	default:
		return o.generateParallel(ctx, r)
	}
}

// generateSequential processes scenes in ascending order, feeding each
// scene's last frame into the next scene's synthesis call so consecutive
// clips stay visually continuous.
func (o *Orchestrator) generateSequential(ctx context.Context, r *run.Run) error {
	prevClipPath := ""
	for _, sc := range r.Scenes {
		if a, ok := r.ArtifactFor(sc.SequenceNumber); ok {
			if err := o.ensureClip(ctx, r, a); err != nil {
				return err
			}
			prevClipPath = a.ClipPath
			continue
		}

		refPath := ""
		if prevClipPath != "" {
			refPath = o.refFramePath(r.ID, sc.SequenceNumber)
			exec := stageExecutor{timeout: o.cfg.MergeTimeout}
			prev := prevClipPath
			err := exec.run(ctx, StageFrameExtraction, sc.SequenceNumber, func(ctx context.Context) error {
				return o.frames.ExtractLastFrame(ctx, prev, refPath)
			})
			if err != nil {
				return err
			}
		}

		if err := o.processScene(ctx, r, sc, refPath); err != nil {
			return err
		}
		prevClipPath = o.clipPath(r.ID, sc.SequenceNumber)
	}
	return nil
}

// generateParallel fans scenes out over the worker pool. The first scene
// failure cancels the shared context so in-flight scenes stop early, and
// that first error is reported.
func (o *Orchestrator) generateParallel(ctx context.Context, r *run.Run) error {
	sceneCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for _, sc := range r.Scenes {
		if _, ok := r.ArtifactFor(sc.SequenceNumber); ok {
			continue
		}

		sc := sc
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			if sceneCtx.Err() != nil {
				return
			}
			if err := o.processScene(sceneCtx, r, sc, ""); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("pipeline: submit scene %d: %w", sc.SequenceNumber, err))
		}
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

// processScene refines, synthesizes, and publishes one scene, recording the
// artifact on success. A terminal refinement failure falls back to the
// deterministic prompt template instead of failing the scene.
func (o *Orchestrator) processScene(ctx context.Context, r *run.Run, sc scene.Descriptor, refImagePath string) error {
	prompt := sc.SynthesisPrompt
	if prompt == "" {
		refineExec := stageExecutor{timeout: o.cfg.RefineTimeout}
		err := refineExec.run(ctx, StageRefinement, sc.SequenceNumber, func(ctx context.Context) error {
			refined, err := o.refiner.RefinePrompt(ctx, sc)
			if err != nil {
				return err
			}
			prompt = refined
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			prompt = sc.SynthesisPromptOrFallback()
			o.logger.Warn("prompt refinement failed, using fallback",
				"run_id", r.ID,
				"scene", sc.SequenceNumber,
				"error", err,
			)
		}
	}

	clipPath := o.clipPath(r.ID, sc.SequenceNumber)
	synthExec := stageExecutor{timeout: o.cfg.SynthesisTimeout}
	err := synthExec.run(ctx, StageSynthesis, sc.SequenceNumber, func(ctx context.Context) error {
		return o.synthesizer.Synthesize(ctx, synth.Request{
			SequenceNumber:     sc.SequenceNumber,
			Prompt:             prompt,
			ReferenceImagePath: refImagePath,
			DestPath:           clipPath,
		})
	})
	if err != nil {
		return err
	}

	var location string
	publishExec := stageExecutor{
		timeout:     o.cfg.PublishTimeout,
		maxRetries:  o.cfg.PublishRetries,
		baseBackoff: o.cfg.RetryBackoff,
	}
	err = publishExec.run(ctx, StagePublish, sc.SequenceNumber, func(ctx context.Context) error {
		loc, err := o.publisher.PublishClip(ctx, r.ID, sc.SequenceNumber, clipPath)
		if err != nil {
			return err
		}
		location = loc
		return nil
	})
	if err != nil {
		return err
	}

	r.RecordArtifact(run.Artifact{
		SequenceNumber: sc.SequenceNumber,
		ClipPath:       clipPath,
		Location:       location,
	})
	if err := o.repo.Save(ctx, r); err != nil {
		return fmt.Errorf("pipeline: persist scene %d artifact: %w", sc.SequenceNumber, err)
	}

	o.logger.Info("scene completed",
		"run_id", r.ID,
		"scene", sc.SequenceNumber,
		"location", location,
	)

	return nil
}

// ensureClip makes sure a completed scene's staged clip exists on local
// disk, pulling it back from the durable store when the staging tree did
// not survive a restart.
func (o *Orchestrator) ensureClip(ctx context.Context, r *run.Run, a run.Artifact) error {
	if _, err := os.Stat(a.ClipPath); err == nil {
		return nil
	}

	o.logger.Info("restoring scene clip from durable store",
		"run_id", r.ID,
		"scene", a.SequenceNumber,
		"location", a.Location,
	)

	exec := stageExecutor{
		timeout:     o.cfg.PublishTimeout,
		maxRetries:  o.cfg.PublishRetries,
		baseBackoff: o.cfg.RetryBackoff,
	}
	return exec.run(ctx, StageRestore, a.SequenceNumber, func(ctx context.Context) error {
		return o.publisher.FetchClip(ctx, r.ID, a.SequenceNumber, a.ClipPath)
	})
}

// merge concatenates the scene clips ascending by sequence number into the
// run's local output file.
func (o *Orchestrator) merge(ctx context.Context, r *run.Run) error {
	artifacts := r.OrderedArtifacts()
	if !r.AllScenesComplete() {
		return &StageError{
			Stage: StageMerge,
			Err:   fmt.Errorf("expected %d scene clips, have %d", len(r.Scenes), len(artifacts)),
		}
	}

	clipPaths := make([]string, len(artifacts))
	for i, a := range artifacts {
		if err := o.ensureClip(ctx, r, a); err != nil {
			return err
		}
		clipPaths[i] = a.ClipPath
	}

	exec := stageExecutor{timeout: o.cfg.MergeTimeout}
	return exec.run(ctx, StageMerge, 0, func(ctx context.Context) error {
		return o.merger.Merge(ctx, clipPaths, o.outputPath(r))
	})
}

// publish moves the merged video into the durable store and records its
// location.
func (o *Orchestrator) publish(ctx context.Context, r *run.Run) error {
	exec := stageExecutor{
		timeout:     o.cfg.PublishTimeout,
		maxRetries:  o.cfg.PublishRetries,
		baseBackoff: o.cfg.RetryBackoff,
	}
	return exec.run(ctx, StagePublish, 0, func(ctx context.Context) error {
		location, err := o.publisher.PublishFinal(ctx, r.ID, r.OutputName, o.outputPath(r))
		if err != nil {
			return err
		}
		r.SetFinalLocation(location)
		return o.repo.Save(ctx, r)
	})
}

// transition moves the run to the next state and persists it.
func (o *Orchestrator) transition(ctx context.Context, r *run.Run, state run.State) error {
	if err := r.TransitionTo(state); err != nil {
		return fmt.Errorf("pipeline: transition to %s: %w", state, err)
	}
	if err := o.repo.Save(ctx, r); err != nil {
		return fmt.Errorf("pipeline: persist state %s: %w", state, err)
	}
	return nil
}

func (o *Orchestrator) runDir(runID string) string {
	return filepath.Join(o.cfg.TempDir, runID)
}

func (o *Orchestrator) clipPath(runID string, sequenceNumber int) string {
	return filepath.Join(o.runDir(runID), fmt.Sprintf("scene_%d.mp4", sequenceNumber))
}

func (o *Orchestrator) refFramePath(runID string, sequenceNumber int) string {
	return filepath.Join(o.runDir(runID), fmt.Sprintf("scene_%d_ref.png", sequenceNumber))
}

func (o *Orchestrator) outputPath(r *run.Run) string {
	return filepath.Join(o.runDir(r.ID), r.OutputName)
}
