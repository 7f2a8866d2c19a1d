package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/detector"
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]detector.HandLandmarks
	reject bool
}

func (s *recordingSink) Submit(hands []detector.HandLandmarks) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.frames = append(s.frames, hands)
	return true
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func solidFrame(t *testing.T, v float64) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), 120, 160, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return &m
}

func newTestApp(det detector.Detector, sink FrameSink) *App {
	return New(Config{
		Camera:      capture.NewMockCamera(nil, true),
		Detector:    det,
		Motion:      capture.NewMotionDetector(1.0),
		Sink:        sink,
		IdleTimeout: 2 * time.Second,
	})
}

func TestProcessFrame_MotionGate(t *testing.T) {
	det := detector.NewMockDetector()
	sink := &recordingSink{}
	a := newTestApp(det, sink)
	defer a.motion.Close()

	black, white := solidFrame(t, 0), solidFrame(t, 255)
	start := time.Unix(0, 0)

	if a.processFrame(black, start) {
		t.Error("baseline frame should not reach the sink")
	}
	if det.Calls() != 0 {
		t.Error("detector ran while idle")
	}

	if !a.processFrame(white, start.Add(100*time.Millisecond)) {
		t.Fatal("frame with motion should reach the sink")
	}
	if !a.active {
		t.Error("motion should switch to active mode")
	}

	// Still scene, within the idle timeout: keep detecting.
	if !a.processFrame(white, start.Add(time.Second)) {
		t.Error("still frame in active mode should reach the sink")
	}

	// Still scene past the timeout with no hand: back to idle, and the
	// recognizer gets an empty frame.
	if a.processFrame(white, start.Add(3*time.Second)) {
		t.Error("frame after idle timeout should be gated")
	}
	if a.active {
		t.Error("should be idle after the timeout")
	}

	if sink.count() != 3 || det.Calls() != 2 {
		t.Errorf("sink frames = %d, detector calls = %d, want 3 and 2", sink.count(), det.Calls())
	}
	if last := sink.frames[2]; len(last) != 0 {
		t.Errorf("idle switch submitted %d hands, want none", len(last))
	}
}

func TestProcessFrame_HeldSignStaysActive(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})
	sink := &recordingSink{}
	a := newTestApp(det, sink)
	defer a.motion.Close()

	black, white := solidFrame(t, 0), solidFrame(t, 255)
	start := time.Unix(0, 0)

	a.processFrame(black, start)
	a.processFrame(white, start.Add(100*time.Millisecond))

	// No motion for well past the timeout, but the hand is still there.
	for i := 1; i <= 3; i++ {
		if !a.processFrame(white, start.Add(time.Duration(i)*3*time.Second)) {
			t.Fatalf("held sign frame %d was gated", i)
		}
	}
	if !a.active {
		t.Fatal("a held sign should keep the loop active")
	}

	// The hand leaves without the gate noticing; the next still frame
	// detects nothing, the one after goes idle.
	det.SetHands(nil)
	if !a.processFrame(white, start.Add(12*time.Second)) {
		t.Error("frame after the hand left should still be detected")
	}
	if a.processFrame(white, start.Add(13*time.Second)) {
		t.Error("should have gone idle")
	}
	if a.active {
		t.Error("expected idle mode")
	}

	if got := sink.count(); got != 6 {
		t.Errorf("sink frames = %d, want 6", got)
	}
	if last := sink.frames[len(sink.frames)-1]; len(last) != 0 {
		t.Errorf("last frame has %d hands, want none", len(last))
	}
}

func TestProcessFrame_NoHandIsSubmitted(t *testing.T) {
	det := detector.NewMockDetector()
	sink := &recordingSink{}
	a := newTestApp(det, sink)
	defer a.motion.Close()

	a.processFrame(solidFrame(t, 0), time.Now())
	if !a.processFrame(solidFrame(t, 255), time.Now()) {
		t.Fatal("no-hand frame should still reach the sink")
	}
	if len(sink.frames[0]) != 0 {
		t.Errorf("hands = %v, want none", sink.frames[0])
	}
}

func TestProcessFrame_DetectorError(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetError(errors.New("service down"))
	sink := &recordingSink{}
	a := newTestApp(det, sink)
	defer a.motion.Close()

	a.processFrame(solidFrame(t, 0), time.Now())
	if a.processFrame(solidFrame(t, 255), time.Now()) {
		t.Error("detector failure should not reach the sink")
	}
	if sink.count() != 0 {
		t.Errorf("sink frames = %d", sink.count())
	}
}

func TestApp_StartStop(t *testing.T) {
	det := detector.NewMockDetector()
	a := newTestApp(det, &recordingSink{})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.Running() || !a.Camera().IsOpen() {
		t.Error("app should be running with the camera open")
	}
	if err := a.Start(); err != nil {
		t.Errorf("second Start() error = %v", err)
	}

	a.SetEnabled(true)
	if !a.IsEnabled() {
		t.Error("IsEnabled() = false")
	}

	deadline := time.Now().Add(2 * time.Second)
	mock := a.Camera().(*capture.MockCamera)
	for mock.Reads() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mock.Reads() == 0 {
		t.Error("frame loop never read a frame")
	}

	a.Stop()
	if a.Running() || a.Camera().IsOpen() {
		t.Error("app should be stopped with the camera closed")
	}
	if !det.Closed() {
		t.Error("Stop() should close the detector")
	}
}

func TestApp_StartWithoutCamera(t *testing.T) {
	a := New(Config{})
	if err := a.Start(); err == nil {
		t.Error("Start() without a camera should fail")
	}
}
