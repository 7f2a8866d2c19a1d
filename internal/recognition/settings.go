package recognition

import "github.com/ayusman/handsign/internal/window"

// Defaults for Settings.
const (
	DefaultMinConfidence      float32 = 0.5
	DefaultLearningConfidence float32 = 0.7
)

// Settings are the recognition knobs read by the orchestrator on every frame.
type Settings struct {
	SequenceMode       bool    `json:"sequence_mode"`
	MinConfidence      float32 `json:"min_confidence"`
	AdaptiveLearning   bool    `json:"adaptive_learning"`
	LearningConfidence float32 `json:"learning_confidence"`
	WindowSize         int     `json:"window_size"`

	// ResetOnHandLoss clears the window when a frame has no hand, so frames
	// from two gestures separated by an occlusion are never classified together.
	ResetOnHandLoss bool `json:"reset_on_hand_loss"`
}

// DefaultSettings returns sequence mode with a 10-frame window, 0.5 acceptance
// and adaptive learning at 0.7.
func DefaultSettings() Settings {
	return Settings{
		SequenceMode:       true,
		MinConfidence:      DefaultMinConfidence,
		AdaptiveLearning:   true,
		LearningConfidence: DefaultLearningConfidence,
		WindowSize:         window.DefaultSize,
	}
}

// Mode names the classification mode the settings select.
func (s Settings) Mode() Mode {
	if s.SequenceMode {
		return ModeSequence
	}
	return ModeSingle
}

func (s Settings) windowSize() int {
	if s.WindowSize < 1 {
		return window.DefaultSize
	}
	return s.WindowSize
}

// SettingsSource supplies the current settings. Implementations must be safe
// for concurrent use.
type SettingsSource interface {
	Current() Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings Settings

func (s StaticSettings) Current() Settings { return Settings(s) }
