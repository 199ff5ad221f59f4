package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sceneweave/sceneweave-api/internal/pipeline"
	"github.com/sceneweave/sceneweave-api/internal/run"
)

// RunService is the pipeline surface the HTTP layer depends on.
type RunService interface {
	CreateRun(ctx context.Context, req pipeline.RunRequest) (*run.Run, error)
	ExecuteRun(ctx context.Context, runID string) (*run.Run, error)
	ResumeRun(ctx context.Context, runID string) (*run.Run, error)
	GetRun(ctx context.Context, runID string) (*run.Run, error)
	ListRuns(ctx context.Context) ([]*run.Run, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            RunService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateRun only creates the run and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service RunService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateRun handles POST /runs requests.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := pipeline.RunRequest{
		Prompt:     req.Prompt,
		OutputName: req.OutputName,
		Topology:   run.Topology(req.Topology),
	}

	// Create the run first (synchronously)
	created, err := h.service.CreateRun(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create run",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create run", "RUN_CREATION_FAILED")
		return
	}

	// Execute the pipeline in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, runID string) {
			if _, execErr := h.service.ExecuteRun(ctx, runID); execErr != nil {
				h.logger.Error("background execution failed",
					slog.String("run_id", runID),
					slog.String("error", execErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), created.ID)
	}

	h.logger.Info("run created",
		slog.String("run_id", created.ID),
		slog.String("topology", string(created.Topology)),
	)

	writeJSON(w, http.StatusAccepted, CreateRunResponse{
		ID:       created.ID,
		State:    string(created.GetState()),
		Topology: string(created.Topology),
	})
}

// GetRun handles GET /runs/{id} requests.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required", "MISSING_RUN_ID")
		return
	}

	found, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run", "RUN_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(found))
}

// ListRuns handles GET /runs requests.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.ListRuns(r.Context())
	if err != nil {
		h.logger.Error("failed to list runs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list runs", "RUN_LIST_FAILED")
		return
	}

	out := make([]RunResponse, 0, len(runs))
	for _, found := range runs {
		out = append(out, toRunResponse(found))
	}
	writeJSON(w, http.StatusOK, out)
}

// ResumeRun handles POST /runs/{id}/resume requests. It restarts an
// interrupted run in the background, skipping scenes that already have
// stored clips.
func (h *Handlers) ResumeRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required", "MISSING_RUN_ID")
		return
	}

	found, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run", "RUN_FETCH_FAILED")
		return
	}

	if found.IsTerminal() {
		writeError(w, http.StatusConflict, "run already finished", "RUN_TERMINAL")
		return
	}

	if h.enableAsyncProcess {
		go func(ctx context.Context, runID string) {
			if _, resumeErr := h.service.ResumeRun(ctx, runID); resumeErr != nil {
				h.logger.Error("background resume failed",
					slog.String("run_id", runID),
					slog.String("error", resumeErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), runID)
	}

	h.logger.Info("run resume requested",
		slog.String("run_id", runID),
	)

	writeJSON(w, http.StatusAccepted, CreateRunResponse{
		ID:       found.ID,
		State:    string(found.GetState()),
		Topology: string(found.Topology),
	})
}

// toRunResponse maps the run aggregate to its HTTP representation.
func toRunResponse(r *run.Run) RunResponse {
	scenes := make([]SceneStatus, 0, len(r.Scenes))
	for _, sc := range r.Scenes {
		status := SceneStatus{
			SequenceNumber:   sc.SequenceNumber,
			Description:      sc.Description,
			DurationEstimate: sc.DurationEstimate,
		}
		if a, ok := r.ArtifactFor(sc.SequenceNumber); ok {
			status.Completed = true
			status.Location = a.Location
		}
		scenes = append(scenes, status)
	}

	return RunResponse{
		ID:            r.ID,
		State:         string(r.GetState()),
		Topology:      string(r.Topology),
		OutputName:    r.OutputName,
		Scenes:        scenes,
		FinalLocation: r.FinalLocation,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
