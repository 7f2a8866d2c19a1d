package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if !cfg.Recognition.SequenceMode || !cfg.Recognition.AdaptiveLearning || !cfg.Recognition.EnableSound {
		t.Error("recognition toggles should default to on")
	}
	if cfg.Recognition.MinConfidence != 0.5 || cfg.Recognition.WindowSize != 10 {
		t.Errorf("recognition = %+v", cfg.Recognition)
	}
	if cfg.Learning.MaxSamplesPerLabel != 100 {
		t.Errorf("MaxSamplesPerLabel = %d", cfg.Learning.MaxSamplesPerLabel)
	}
	if cfg.Model.InputName != "input" || cfg.Model.OutputName != "output" {
		t.Errorf("tensor names = %q/%q", cfg.Model.InputName, cfg.Model.OutputName)
	}
	if filepath.Base(cfg.TrainingDataDir()) != "training_data" {
		t.Errorf("TrainingDataDir() = %q", cfg.TrainingDataDir())
	}

	s := cfg.RecognitionSettings()
	if s.LearningConfidence != 0.7 {
		t.Errorf("LearningConfidence = %v, want 0.7", s.LearningConfidence)
	}
}

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
data_dir: /var/lib/handsign
recognition:
  sequence_mode: false
  window_size: 15
model:
  timeout: 250ms
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Recognition.SequenceMode {
		t.Error("sequence_mode should be false")
	}
	if !cfg.Recognition.AdaptiveLearning {
		t.Error("adaptive_learning should keep its default")
	}
	if cfg.Recognition.WindowSize != 15 {
		t.Errorf("WindowSize = %d", cfg.Recognition.WindowSize)
	}
	if cfg.Model.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v", cfg.Model.Timeout)
	}
	if cfg.Model.ModelPath != "/var/lib/handsign/models/sign_model.onnx" {
		t.Errorf("ModelPath = %q", cfg.Model.ModelPath)
	}
	if cfg.DBPath() != "/var/lib/handsign/handsign.db" {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "recognition: [1, 2"},
		{"confidence above one", "recognition:\n  min_confidence: 1.5\n"},
		{"negative camera", "camera:\n  device_id: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handsign.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: 127.0.0.1:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("expandHome(~/x) = %q", got)
	}
	if got := expandHome("/abs"); got != "/abs" {
		t.Errorf("expandHome(/abs) = %q", got)
	}
}
