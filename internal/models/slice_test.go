package models

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseSliceKind(t *testing.T) {
	cases := map[string]SliceKind{
		"Time Slice": TimeSlice,
		"timeslice":  TimeSlice,
		"time":       TimeSlice,
		"Inline":     Inline,
		"iline":      Inline,
		"CROSSLINE":  Crossline,
		"x-line":     Crossline,
	}
	for in, want := range cases {
		got, err := ParseSliceKind(in)
		if err != nil {
			t.Errorf("ParseSliceKind(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseSliceKind(%q) = %v, expected %v", in, got, want)
		}
	}

	if _, err := ParseSliceKind("diagonal"); err == nil {
		t.Error("Expected error for unknown slice kind")
	}
}

func TestSliceKindYAML(t *testing.T) {
	var doc struct {
		Kind SliceKind `yaml:"kind"`
	}
	if err := yaml.Unmarshal([]byte("kind: crossline\n"), &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if doc.Kind != Crossline {
		t.Errorf("Expected Crossline, got %v", doc.Kind)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != "kind: Crossline\n" {
		t.Errorf("Unexpected YAML: %q", out)
	}
}

func TestExtractionResultAvailable(t *testing.T) {
	if (ExtractionResult{Status: Unavailable}).Available() {
		t.Error("Unavailable result must not be available")
	}
	if (ExtractionResult{Status: Degraded}).Available() {
		t.Error("Result without a slice must not be available")
	}
	if !(ExtractionResult{Status: Degraded, Slice: &VolumeSlice{}}).Available() {
		t.Error("Degraded result with a slice must be available")
	}
}
