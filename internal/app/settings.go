package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ayusman/handsign/internal/recognition"
	"github.com/ayusman/handsign/internal/store"
)

// SettingsKey is the settings-table key holding the persisted preferences.
const SettingsKey = "recognition"

// MaxWindowSize bounds the configurable window length.
const MaxWindowSize = 120

// ErrInvalidSettings is returned when an update carries out-of-range values.
var ErrInvalidSettings = errors.New("invalid settings")

// KeyValue is the persistence surface, satisfied by *store.SettingsRepository.
type KeyValue interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Preferences are the user-toggleable settings.
type Preferences struct {
	SequenceMode     bool    `json:"sequence_mode"`
	MinConfidence    float32 `json:"min_confidence"`
	AdaptiveLearning bool    `json:"adaptive_learning"`
	WindowSize       int     `json:"window_size"`
	ResetOnHandLoss  bool    `json:"reset_on_hand_loss"`
	EnableSound      bool    `json:"enable_sound"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	SequenceMode     *bool    `json:"sequence_mode,omitempty"`
	MinConfidence    *float32 `json:"min_confidence,omitempty"`
	AdaptiveLearning *bool    `json:"adaptive_learning,omitempty"`
	WindowSize       *int     `json:"window_size,omitempty"`
	ResetOnHandLoss  *bool    `json:"reset_on_hand_loss,omitempty"`
	EnableSound      *bool    `json:"enable_sound,omitempty"`
}

func (p Patch) apply(prefs Preferences) Preferences {
	if p.SequenceMode != nil {
		prefs.SequenceMode = *p.SequenceMode
	}
	if p.MinConfidence != nil {
		prefs.MinConfidence = *p.MinConfidence
	}
	if p.AdaptiveLearning != nil {
		prefs.AdaptiveLearning = *p.AdaptiveLearning
	}
	if p.WindowSize != nil {
		prefs.WindowSize = *p.WindowSize
	}
	if p.ResetOnHandLoss != nil {
		prefs.ResetOnHandLoss = *p.ResetOnHandLoss
	}
	if p.EnableSound != nil {
		prefs.EnableSound = *p.EnableSound
	}
	return prefs
}

func (p Preferences) validate() error {
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %v outside [0, 1]", ErrInvalidSettings, p.MinConfidence)
	}
	if p.WindowSize < 1 || p.WindowSize > MaxWindowSize {
		return fmt.Errorf("%w: window_size %d outside [1, %d]", ErrInvalidSettings, p.WindowSize, MaxWindowSize)
	}
	return nil
}

// RuntimeSettings holds the live preferences. Reads are lock-free snapshots;
// updates are validated, persisted and then published.
type RuntimeSettings struct {
	kv     KeyValue
	logger *slog.Logger

	mu        sync.Mutex
	current   atomic.Pointer[Preferences]
	listeners []func(Preferences)
}

// NewRuntimeSettings starts from defaults and overlays whatever was persisted
// under SettingsKey. A corrupt stored value is logged and ignored.
func NewRuntimeSettings(kv KeyValue, defaults Preferences, logger *slog.Logger) (*RuntimeSettings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RuntimeSettings{
		kv:     kv,
		logger: logger.With("component", "settings"),
	}

	prefs := defaults
	if kv != nil {
		raw, err := kv.Get(SettingsKey)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("load settings: %w", err)
		default:
			stored := defaults
			if err := json.Unmarshal([]byte(raw), &stored); err != nil {
				r.logger.Warn("ignoring stored settings", "error", err)
			} else if err := stored.validate(); err != nil {
				r.logger.Warn("ignoring stored settings", "error", err)
			} else {
				prefs = stored
			}
		}
	}
	if err := prefs.validate(); err != nil {
		return nil, err
	}

	r.current.Store(&prefs)
	return r, nil
}

// Preferences returns the current preferences.
func (r *RuntimeSettings) Preferences() Preferences {
	return *r.current.Load()
}

// Current implements recognition.SettingsSource. The learning threshold is
// not user-configurable.
func (r *RuntimeSettings) Current() recognition.Settings {
	p := r.current.Load()
	return recognition.Settings{
		SequenceMode:       p.SequenceMode,
		MinConfidence:      p.MinConfidence,
		AdaptiveLearning:   p.AdaptiveLearning,
		LearningConfidence: recognition.DefaultLearningConfidence,
		WindowSize:         p.WindowSize,
		ResetOnHandLoss:    p.ResetOnHandLoss,
	}
}

// SoundEnabled reports whether audible feedback is on.
func (r *RuntimeSettings) SoundEnabled() bool {
	return r.current.Load().EnableSound
}

// Update applies patch and persists the result. Nothing changes on error.
func (r *RuntimeSettings) Update(patch Patch) (Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := patch.apply(*r.current.Load())
	if err := next.validate(); err != nil {
		return Preferences{}, err
	}

	if r.kv != nil {
		data, err := json.Marshal(next)
		if err != nil {
			return Preferences{}, err
		}
		if err := r.kv.Set(SettingsKey, string(data)); err != nil {
			return Preferences{}, fmt.Errorf("save settings: %w", err)
		}
	}

	r.current.Store(&next)
	r.logger.Info("settings updated",
		"sequence_mode", next.SequenceMode,
		"min_confidence", next.MinConfidence,
		"adaptive_learning", next.AdaptiveLearning,
		"window_size", next.WindowSize,
	)

	for _, fn := range r.listeners {
		fn(next)
	}
	return next, nil
}

// OnChange registers fn to run after every successful update.
func (r *RuntimeSettings) OnChange(fn func(Preferences)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}
