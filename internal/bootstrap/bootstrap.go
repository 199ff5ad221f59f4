// Package bootstrap provides dependency initialization for the scene pipeline API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/sceneweave/sceneweave-api/internal/config"
	"github.com/sceneweave/sceneweave-api/internal/genai"
	"github.com/sceneweave/sceneweave-api/internal/media"
	"github.com/sceneweave/sceneweave-api/internal/pipeline"
	"github.com/sceneweave/sceneweave-api/internal/planner"
	"github.com/sceneweave/sceneweave-api/internal/run"
	"github.com/sceneweave/sceneweave-api/internal/storage"
	"github.com/sceneweave/sceneweave-api/internal/synth"
	"github.com/sceneweave/sceneweave-api/internal/veo"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Orchestrator *pipeline.Orchestrator

	pool *ants.Pool
}

// Close releases pooled resources.
func (d *Dependencies) Close() {
	if d.pool != nil {
		d.pool.Release()
	}
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize content-generation client for planning and refinement
	genaiClient, err := genai.NewClient(cfg.GenAIModel,
		genai.WithAPIKey(cfg.GenAIAPIKey),
		genai.WithBaseURL(cfg.GenAIBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create content-generation client: %w", err)
	}

	// Initialize video-synthesis client
	veoClient, err := veo.NewClient(cfg.VeoModel,
		veo.WithAPIKey(cfg.GenAIAPIKey),
		veo.WithBaseURL(cfg.GenAIBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create video-synthesis client: %w", err)
	}

	// Initialize media processing
	processor := media.NewFFmpegProcessor("")
	merger := media.NewMerger(processor, logger)

	// Worker pool bounding concurrent scene synthesis
	pool, err := ants.NewPool(cfg.MaxConcurrentScenes)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	// The planner service covers both scene planning and prompt refinement.
	plannerSvc := planner.New(genaiClient, cfg.MinScenes, cfg.MaxScenes, logger)

	orchestrator := pipeline.New(
		plannerSvc,
		plannerSvc,
		synth.New(veoClient, cfg.PollInterval, logger),
		processor,
		merger,
		pipeline.NewStorePublisher(store),
		store,
		run.NewMemoryRepository(),
		pool,
		pipeline.Config{
			PlanningTimeout:  cfg.PlanningTimeout,
			RefineTimeout:    cfg.RefineTimeout,
			SynthesisTimeout: cfg.SynthesisTimeout,
			MergeTimeout:     cfg.MergeTimeout,
			PublishTimeout:   cfg.PublishTimeout,
			PublishRetries:   cfg.PublishRetries,
			RetryBackoff:     cfg.RetryBackoff,
			TempDir:          cfg.TempDir,
			DefaultTopology:  run.Topology(cfg.DefaultTopology),
		},
		logger,
	)

	return &Dependencies{
		Orchestrator: orchestrator,
		pool:         pool,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
		slog.String("store_dir", cfg.StoreDir),
	)
	return localStore, nil
}
