package testdata

import (
	"errors"
	"testing"

	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/labels"
)

func TestLoadSequence(t *testing.T) {
	seq, err := LoadSequence("wave")
	if err != nil {
		t.Fatalf("LoadSequence() error = %v", err)
	}
	if len(seq.Frames) != 12 || seq.Label != "hello" {
		t.Fatalf("wave = %d frames, label %q", len(seq.Frames), seq.Label)
	}
	if len(seq.Frames[5]) != 0 {
		t.Error("frame 5 should be a dropout")
	}
	if len(seq.Frames[0]) != 1 {
		t.Error("frame 0 should hold one hand")
	}

	if _, err := LoadSequence("truncated"); !errors.Is(err, detector.ErrLandmarkCount) {
		t.Errorf("truncated error = %v, want ErrLandmarkCount", err)
	}
	if _, err := LoadSequence("missing"); err == nil {
		t.Error("missing sequence should fail")
	}
}

func TestSequences(t *testing.T) {
	names := Sequences()
	if len(names) != 3 {
		t.Errorf("Sequences() = %v", names)
	}
}

func TestLabels(t *testing.T) {
	names, err := labels.Parse(Labels())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(names) != 5 || names[0] != "hello" {
		t.Errorf("labels = %v", names)
	}
}
