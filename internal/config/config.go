// Package config loads the handsign YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/handsign/internal/recognition"
)

// Config is the top-level configuration.
type Config struct {
	DataDir    string `yaml:"data_dir"`
	ListenAddr string `yaml:"listen_addr"`
	Headless   bool   `yaml:"headless"`

	Camera      CameraConfig      `yaml:"camera"`
	Detector    DetectorConfig    `yaml:"detector"`
	Model       ModelConfig       `yaml:"model"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Learning    LearningConfig    `yaml:"learning"`
	Plugins     PluginsConfig     `yaml:"plugins"`
}

type CameraConfig struct {
	DeviceID        int     `yaml:"device_id"`
	MotionThreshold float64 `yaml:"motion_threshold"`
	IdleFPS         int     `yaml:"idle_fps"`
	ActiveFPS       int     `yaml:"active_fps"`
}

// DetectorConfig locates the MediaPipe landmark service.
type DetectorConfig struct {
	ScriptPath    string        `yaml:"script_path"`
	MinConfidence float64       `yaml:"min_confidence"`
	IdleShutdown  time.Duration `yaml:"idle_shutdown"`
}

// ModelConfig locates the classifier assets.
type ModelConfig struct {
	ModelPath      string        `yaml:"model_path"`
	LabelsPath     string        `yaml:"labels_path"`
	ONNXRuntimeLib string        `yaml:"onnxruntime_lib"`
	InputName      string        `yaml:"input_name"`
	OutputName     string        `yaml:"output_name"`
	Timeout        time.Duration `yaml:"timeout"`
}

// RecognitionConfig holds the initial recognition settings. Values saved at
// runtime take precedence.
type RecognitionConfig struct {
	SequenceMode     bool    `yaml:"sequence_mode"`
	MinConfidence    float32 `yaml:"min_confidence"`
	AdaptiveLearning bool    `yaml:"adaptive_learning"`
	WindowSize       int     `yaml:"window_size"`
	ResetOnHandLoss  bool    `yaml:"reset_on_hand_loss"`
	EnableSound      bool    `yaml:"enable_sound"`
}

type LearningConfig struct {
	MaxSamplesPerLabel int `yaml:"max_samples_per_label"`
	QueueSize          int `yaml:"queue_size"`
}

type PluginsConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := toggles()
	cfg.applyDefaults()
	return cfg
}

// toggles holds the boolean settings that default to on; applyDefaults cannot
// tell an explicit false from a missing key.
func toggles() Config {
	return Config{
		Recognition: RecognitionConfig{
			SequenceMode:     true,
			AdaptiveLearning: true,
			EnableSound:      true,
		},
	}
}

// LoadFile reads a YAML configuration file. Keys missing from the file keep
// their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := toggles()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "~/.handsign"
	}
	c.DataDir = expandHome(c.DataDir)
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}

	if c.Camera.MotionThreshold <= 0 {
		c.Camera.MotionThreshold = 1.0
	}
	if c.Camera.IdleFPS <= 0 {
		c.Camera.IdleFPS = 5
	}
	if c.Camera.ActiveFPS <= 0 {
		c.Camera.ActiveFPS = 15
	}

	if c.Detector.MinConfidence <= 0 {
		c.Detector.MinConfidence = 0.5
	}
	if c.Detector.IdleShutdown <= 0 {
		c.Detector.IdleShutdown = 30 * time.Second
	}
	c.Detector.ScriptPath = expandHome(c.Detector.ScriptPath)

	if c.Model.ModelPath == "" {
		c.Model.ModelPath = filepath.Join(c.DataDir, "models", "sign_model.onnx")
	}
	if c.Model.LabelsPath == "" {
		c.Model.LabelsPath = filepath.Join(c.DataDir, "models", "labels.json")
	}
	c.Model.ModelPath = expandHome(c.Model.ModelPath)
	c.Model.LabelsPath = expandHome(c.Model.LabelsPath)
	c.Model.ONNXRuntimeLib = expandHome(c.Model.ONNXRuntimeLib)
	if c.Model.InputName == "" {
		c.Model.InputName = "input"
	}
	if c.Model.OutputName == "" {
		c.Model.OutputName = "output"
	}

	if c.Recognition.MinConfidence <= 0 {
		c.Recognition.MinConfidence = recognition.DefaultMinConfidence
	}
	if c.Recognition.WindowSize <= 0 {
		c.Recognition.WindowSize = 10
	}

	if c.Learning.MaxSamplesPerLabel <= 0 {
		c.Learning.MaxSamplesPerLabel = 100
	}
	if c.Learning.QueueSize <= 0 {
		c.Learning.QueueSize = 32
	}

	if c.Plugins.Dir == "" {
		c.Plugins.Dir = filepath.Join(c.DataDir, "plugins")
	}
	c.Plugins.Dir = expandHome(c.Plugins.Dir)
	if c.Plugins.Timeout <= 0 {
		c.Plugins.Timeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Recognition.MinConfidence > 1 {
		return fmt.Errorf("recognition.min_confidence must be in (0, 1], got %v", c.Recognition.MinConfidence)
	}
	if c.Camera.DeviceID < 0 {
		return fmt.Errorf("camera.device_id must not be negative, got %d", c.Camera.DeviceID)
	}
	return nil
}

// RecognitionSettings converts the recognition section. The learning floor is
// fixed and not configurable.
func (c *Config) RecognitionSettings() recognition.Settings {
	return recognition.Settings{
		SequenceMode:       c.Recognition.SequenceMode,
		MinConfidence:      c.Recognition.MinConfidence,
		AdaptiveLearning:   c.Recognition.AdaptiveLearning,
		LearningConfidence: recognition.DefaultLearningConfidence,
		WindowSize:         c.Recognition.WindowSize,
		ResetOnHandLoss:    c.Recognition.ResetOnHandLoss,
	}
}

// DBPath is the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "handsign.db")
}

// TrainingDataDir is the adaptive learning store root.
func (c *Config) TrainingDataDir() string {
	return filepath.Join(c.DataDir, "training_data")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
