package app

import (
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsign/internal/capture"
)

// runPipeline reads frames at the current rate until stop is closed. The loop
// idles at idleFPS and switches to activeFPS while the motion gate fires or a
// hand stays in view; hands are only detected in active mode.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	a.active = false
	a.handSeen = false
	a.lastMotion = time.Now()

	ticker := time.NewTicker(time.Second / time.Duration(a.idleFPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrCameraNotOpen) {
					return
				}
				a.logger.Warn("read frame", "error", err)
				continue
			}

			before := a.active
			a.processFrame(frame, time.Now())
			frame.Close()

			if a.active != before {
				fps := a.idleFPS
				if a.active {
					fps = a.activeFPS
				}
				a.camera.SetFPS(fps)
				ticker.Reset(time.Second / time.Duration(fps))
			}
		}
	}
}

// processFrame runs the motion gate and, in active mode, hand detection. It
// reports whether the frame's detections reached the sink.
//
// A still scene only goes idle once the last detection saw no hand, so a
// sign held motionless keeps being classified. Going idle submits one empty
// frame so the recognizer drops its last label.
func (a *App) processFrame(frame *gocv.Mat, now time.Time) bool {
	moved, _ := a.motion.Detect(frame)

	switch {
	case moved:
		a.lastMotion = now
		if !a.active {
			a.active = true
			a.logger.Debug("switched to active mode")
		}
	case a.active && !a.handSeen && now.Sub(a.lastMotion) > a.idleTimeout:
		a.active = false
		a.logger.Debug("switched to idle mode")
		if a.sink != nil {
			a.sink.Submit(nil)
		}
		return false
	}

	if !a.active || a.detector == nil || a.sink == nil {
		return false
	}

	hands, err := a.detector.Detect(frame)
	a.handSeen = err == nil && len(hands) > 0
	if err != nil {
		a.logger.Warn("detect hands", "error", err)
		return false
	}

	return a.sink.Submit(hands)
}
