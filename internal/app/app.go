// Package app runs the camera frame loop and the runtime pieces around the
// recognition pipeline: persisted settings, the transcript and label actions.
package app

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/detector"
)

// Frame loop defaults.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate while something moves in view.
	ActiveFPS = 15
	// IdleTimeout is how long without motion before dropping back to IdleFPS.
	IdleTimeout = 2 * time.Second
)

// FrameSink accepts one frame's detections without blocking.
type FrameSink interface {
	Submit(hands []detector.HandLandmarks) bool
}

// Config holds the collaborators of the frame loop.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Motion   *capture.MotionDetector
	Sink     FrameSink

	IdleFPS     int
	ActiveFPS   int
	IdleTimeout time.Duration

	Logger *slog.Logger
}

// App reads camera frames, gates them on motion, detects hands and hands the
// result to the recognition pipeline.
type App struct {
	camera   capture.Camera
	detector detector.Detector
	motion   *capture.MotionDetector
	sink     FrameSink
	logger   *slog.Logger

	idleFPS     int
	activeFPS   int
	idleTimeout time.Duration

	mu      sync.RWMutex
	enabled bool
	stopCh  chan struct{}
	done    chan struct{}

	// Loop-owned.
	active     bool
	lastMotion time.Time
	handSeen   bool
}

// New creates an App. Detection starts disabled.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Motion == nil {
		cfg.Motion = capture.NewMotionDetector(1.0)
	}
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = IdleFPS
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = ActiveFPS
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = IdleTimeout
	}

	return &App{
		camera:      cfg.Camera,
		detector:    cfg.Detector,
		motion:      cfg.Motion,
		sink:        cfg.Sink,
		logger:      logger.With("component", "app"),
		idleFPS:     cfg.IdleFPS,
		activeFPS:   cfg.ActiveFPS,
		idleTimeout: cfg.IdleTimeout,
	}
}

// SetEnabled enables or disables hand detection. Frames are still read while
// disabled so the camera stays warm.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether hand detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera and begins the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.camera == nil {
		return errors.New("no camera configured")
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.idleFPS)

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	a.logger.Info("frame loop started", "idle_fps", a.idleFPS, "active_fps", a.activeFPS)
	return nil
}

// Stop halts the frame loop and releases the camera, motion gate and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.logger.Warn("close camera", "error", err)
		}
	}
	a.motion.Close()

	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.logger.Warn("close detector", "error", err)
		}
	}

	a.logger.Info("frame loop stopped")
}

// Running reports whether the frame loop is started.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// MotionDetector returns the motion gate.
func (a *App) MotionDetector() *capture.MotionDetector {
	return a.motion
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}
