package scene

import "testing"

func TestApplyDefaults(t *testing.T) {
	d := Descriptor{SequenceNumber: 1, Description: "a quiet harbor at dawn"}
	d.ApplyDefaults()
	if d.CameraAngle != DefaultCameraAngle {
		t.Errorf("expected default camera angle, got %q", d.CameraAngle)
	}
	if d.Lighting != DefaultLighting {
		t.Errorf("expected default lighting, got %q", d.Lighting)
	}

	d2 := Descriptor{CameraAngle: "low angle", Lighting: "neon glow"}
	d2.ApplyDefaults()
	if d2.CameraAngle != "low angle" || d2.Lighting != "neon glow" {
		t.Error("existing hints must not be overwritten")
	}
}

func TestFallbackPrompt(t *testing.T) {
	d := Descriptor{
		Description: "a street magician shuffles cards",
		CameraAngle: "extreme close-up",
		Lighting:    "dramatic shadows",
	}
	want := "a street magician shuffles cards. The camera uses extreme close-up. The lighting is dramatic shadows."
	if got := d.FallbackPrompt(); got != want {
		t.Errorf("fallback prompt mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestSynthesisPromptOrFallback(t *testing.T) {
	d := Descriptor{Description: "desc", CameraAngle: "wide shot", Lighting: "golden hour"}
	if got := d.SynthesisPromptOrFallback(); got != d.FallbackPrompt() {
		t.Errorf("expected fallback when no refined prompt, got %q", got)
	}

	d.SynthesisPrompt = "Cinematic wide shot, slow dolly-in, golden hour backlight."
	if got := d.SynthesisPromptOrFallback(); got != d.SynthesisPrompt {
		t.Errorf("expected refined prompt, got %q", got)
	}
}

func TestSortBySequence(t *testing.T) {
	scenes := []Descriptor{
		{SequenceNumber: 3},
		{SequenceNumber: 1},
		{SequenceNumber: 2},
	}
	SortBySequence(scenes)
	for i, sc := range scenes {
		if sc.SequenceNumber != i+1 {
			t.Fatalf("position %d holds sequence number %d", i, sc.SequenceNumber)
		}
	}
}
