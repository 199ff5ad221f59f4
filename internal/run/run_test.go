package run

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sceneweave/sceneweave-api/internal/scene"
)

func TestNew(t *testing.T) {
	r := New("a storm over the harbor", "final.mp4", TopologyParallel)

	if r.ID == "" {
		t.Error("expected run ID to be set")
	}
	if !strings.HasPrefix(r.StagingPrefix, "videos/") {
		t.Errorf("expected staging prefix under videos/, got %q", r.StagingPrefix)
	}
	if !strings.HasSuffix(r.StagingPrefix, r.ID) {
		t.Errorf("staging prefix %q should be derived from run ID %q", r.StagingPrefix, r.ID)
	}
	if r.State != StatePlanning {
		t.Errorf("expected initial state %s, got %s", StatePlanning, r.State)
	}
	if r.OutputName != "final.mp4" {
		t.Errorf("unexpected output name %q", r.OutputName)
	}
}

func TestNew_DisjointStagingPrefixes(t *testing.T) {
	a := New("p", "a.mp4", TopologyParallel)
	b := New("p", "b.mp4", TopologyParallel)
	if a.StagingPrefix == b.StagingPrefix {
		t.Errorf("concurrent runs share staging prefix %q", a.StagingPrefix)
	}
}

func TestTopology_IsValid(t *testing.T) {
	if !TopologySequential.IsValid() || !TopologyParallel.IsValid() {
		t.Error("expected known topologies to be valid")
	}
	if Topology("best-effort").IsValid() {
		t.Error("unknown topology must be invalid")
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"planning to generating", StatePlanning, StateGeneratingScenes, false},
		{"generating to merging", StateGeneratingScenes, StateMerging, false},
		{"merging to publishing", StateMerging, StatePublishing, false},
		{"publishing to completed", StatePublishing, StateCompleted, false},
		{"planning to failed", StatePlanning, StateFailed, false},
		{"generating to failed", StateGeneratingScenes, StateFailed, false},
		{"merging to failed", StateMerging, StateFailed, false},
		{"publishing to failed", StatePublishing, StateFailed, false},
		{"planning skips to merging", StatePlanning, StateMerging, true},
		{"planning skips to completed", StatePlanning, StateCompleted, true},
		{"completed is terminal", StateCompleted, StateFailed, true},
		{"failed is terminal", StateFailed, StatePlanning, true},
		{"backwards", StateMerging, StateGeneratingScenes, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("p", "out.mp4", TopologySequential)
			r.State = tt.from
			err := r.TransitionTo(tt.to)
			if tt.wantErr && err != ErrInvalidTransition {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFail(t *testing.T) {
	r := New("p", "out.mp4", TopologySequential)
	if err := r.Fail("synthesize scene 2: no video produced"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.GetState() != StateFailed {
		t.Errorf("expected FAILED, got %s", r.GetState())
	}
	if r.Error == "" {
		t.Error("expected error reason to be recorded")
	}
	if r.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set on terminal state")
	}
}

func TestOrderedArtifacts_IgnoresCompletionOrder(t *testing.T) {
	r := New("p", "out.mp4", TopologyParallel)
	r.SetScenes([]scene.Descriptor{
		{SequenceNumber: 2}, {SequenceNumber: 1}, {SequenceNumber: 3},
	})

	// Scenes complete out of order.
	r.RecordArtifact(Artifact{SequenceNumber: 3, ClipPath: "/tmp/s3.mp4"})
	r.RecordArtifact(Artifact{SequenceNumber: 1, ClipPath: "/tmp/s1.mp4"})
	r.RecordArtifact(Artifact{SequenceNumber: 2, ClipPath: "/tmp/s2.mp4"})

	got := r.OrderedArtifacts()
	if len(got) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(got))
	}
	for i, a := range got {
		if a.SequenceNumber != i+1 {
			t.Errorf("position %d holds sequence number %d", i, a.SequenceNumber)
		}
	}
}

func TestAllScenesComplete(t *testing.T) {
	r := New("p", "out.mp4", TopologyParallel)
	if r.AllScenesComplete() {
		t.Error("run with no scenes must not report complete")
	}

	r.SetScenes([]scene.Descriptor{{SequenceNumber: 1}, {SequenceNumber: 2}})
	r.RecordArtifact(Artifact{SequenceNumber: 1})
	if r.AllScenesComplete() {
		t.Error("expected incomplete with one artifact missing")
	}
	r.RecordArtifact(Artifact{SequenceNumber: 2})
	if !r.AllScenesComplete() {
		t.Error("expected complete with all artifacts recorded")
	}
}

func TestRecordArtifact_Overwrites(t *testing.T) {
	r := New("p", "out.mp4", TopologySequential)
	r.SetScenes([]scene.Descriptor{{SequenceNumber: 1}})
	r.RecordArtifact(Artifact{SequenceNumber: 1, ClipPath: "/tmp/old.mp4"})
	r.RecordArtifact(Artifact{SequenceNumber: 1, ClipPath: "/tmp/new.mp4"})

	a, ok := r.ArtifactFor(1)
	if !ok {
		t.Fatal("expected artifact for scene 1")
	}
	if a.ClipPath != "/tmp/new.mp4" {
		t.Errorf("retried synthesis must overwrite, got %q", a.ClipPath)
	}
	if len(r.SceneArtifacts) != 1 {
		t.Errorf("expected exactly one artifact entry, got %d", len(r.SceneArtifacts))
	}
}

func TestClone_IsDeep(t *testing.T) {
	r := New("p", "out.mp4", TopologySequential)
	r.SetScenes([]scene.Descriptor{{SequenceNumber: 1, Description: "opening"}})
	r.RecordArtifact(Artifact{SequenceNumber: 1, ClipPath: "/tmp/s1.mp4"})

	c := r.Clone()
	c.Scenes[0].Description = "mutated"
	c.SceneArtifacts[1] = Artifact{SequenceNumber: 1, ClipPath: "/tmp/other.mp4"}

	if r.Scenes[0].Description != "opening" {
		t.Error("clone shares scene slice with original")
	}
	if a, _ := r.ArtifactFor(1); a.ClipPath != "/tmp/s1.mp4" {
		t.Error("clone shares artifact map with original")
	}
}

func TestRun_JSONRoundTrip(t *testing.T) {
	r := New("prompt", "out.mp4", TopologySequential)
	r.SetScenes([]scene.Descriptor{{SequenceNumber: 1, Description: "opening"}})
	r.RecordArtifact(Artifact{SequenceNumber: 1, ClipPath: "/tmp/s1.mp4", Location: "s3://b/videos/x/scene_1.mp4"})

	data, err := json.Marshal(r.Clone())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored Run
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.ID != r.ID || restored.State != r.State {
		t.Error("restored run lost identity or state")
	}
	if a, ok := restored.SceneArtifacts[1]; !ok || a.Location != "s3://b/videos/x/scene_1.mp4" {
		t.Error("restored run lost scene artifacts")
	}
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	r := New("p", "out.mp4", TopologyParallel)
	if err := repo.Save(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := repo.FindByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != r.ID {
		t.Errorf("expected ID %s, got %s", r.ID, found.ID)
	}

	// Saved copy must be isolated from later mutations.
	r.SetFinalLocation("s3://bucket/videos/x/out.mp4")
	found2, _ := repo.FindByID(ctx, r.ID)
	if found2.FinalLocation != "" {
		t.Error("repository copy mutated through original reference")
	}

	runs, err := repo.List(ctx)
	if err != nil || len(runs) != 1 {
		t.Fatalf("list: %v, len=%d", err, len(runs))
	}

	if err := repo.Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, r.ID); err != ErrRunNotFound {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "nonexistent"); err != ErrRunNotFound {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
