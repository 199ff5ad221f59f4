// Package id provides unique identifier generation for pipeline runs.
package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique run ID.
// Format: run-<timestamp>-<random>
// Example: run-1701432000-a1b2c3d4
//
// The timestamp keeps IDs roughly sortable by start time; the random suffix
// keeps concurrent runs collision-resistant.
func Generate() string {
	return fmt.Sprintf("run-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
}

// StagingPrefix derives the per-run storage namespace from a run ID.
// All intermediate and final artifacts for the run live under this prefix,
// so concurrent runs never collide.
func StagingPrefix(runID string) string {
	return "videos/" + runID
}
