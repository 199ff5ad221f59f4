// Package server provides the HTTP server for the scene pipeline API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateRunRequest is the HTTP request body for starting a new run.
type CreateRunRequest struct {
	// Prompt is the free-text description of the video to generate.
	Prompt string `json:"prompt" validate:"required,min=1,max=2000"`
	// OutputName optionally names the final video file.
	OutputName string `json:"output_name" validate:"omitempty,max=255"`
	// Topology optionally selects how scenes are processed.
	Topology string `json:"topology" validate:"omitempty,oneof=sequential parallel"`
}

// CreateRunResponse is the HTTP response after creating a run.
type CreateRunResponse struct {
	// ID is the unique identifier for the created run.
	ID string `json:"id"`
	// State is the initial run state.
	State string `json:"state"`
	// Topology is the scene processing topology the run will use.
	Topology string `json:"topology"`
}

// SceneStatus describes one planned scene and its completion.
type SceneStatus struct {
	// SequenceNumber is the scene's position in the final video.
	SequenceNumber int `json:"sequence_number"`
	// Description is the planner's summary of the scene.
	Description string `json:"description"`
	// DurationEstimate is the planned scene length in seconds.
	DurationEstimate int `json:"duration_estimate"`
	// Completed is true once the scene's clip has been stored.
	Completed bool `json:"completed"`
	// Location is the stored clip location, set when completed.
	Location string `json:"location,omitempty"`
}

// RunResponse is the HTTP response for getting run details.
type RunResponse struct {
	// ID is the unique identifier for the run.
	ID string `json:"id"`
	// State is the current run state.
	State string `json:"state"`
	// Topology is the scene processing topology.
	Topology string `json:"topology"`
	// OutputName is the name of the final video file.
	OutputName string `json:"output_name"`
	// Scenes lists the planned scenes and their completion.
	Scenes []SceneStatus `json:"scenes,omitempty"`
	// FinalLocation is the stored location of the merged video, set when completed.
	FinalLocation string `json:"final_location,omitempty"`
	// Error contains the failure message if the run failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the run was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
