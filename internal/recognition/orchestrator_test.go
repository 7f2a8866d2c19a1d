package recognition

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/handsign/internal/classifier"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/feature"
)

type fakeClassifier struct {
	mu         sync.Mutex
	result     *classifier.Result
	block      chan struct{}
	singles    []feature.Vector
	sequences  [][]feature.Vector
	seqTargets []int
}

func (c *fakeClassifier) wait() {
	c.mu.Lock()
	block := c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (c *fakeClassifier) ClassifySingle(_ context.Context, v feature.Vector) *classifier.Result {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singles = append(c.singles, v)
	return c.copyResult()
}

func (c *fakeClassifier) ClassifySequence(_ context.Context, frames []feature.Vector, target int) *classifier.Result {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequences = append(c.sequences, frames)
	c.seqTargets = append(c.seqTargets, target)
	return c.copyResult()
}

func (c *fakeClassifier) copyResult() *classifier.Result {
	if c.result == nil {
		return nil
	}
	r := *c.result
	return &r
}

func (c *fakeClassifier) setResult(label string, confidence float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &classifier.Result{Label: label, Confidence: confidence}
}

func (c *fakeClassifier) counts() (single, sequence int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.singles), len(c.sequences)
}

type fakeSink struct {
	mu      sync.Mutex
	labels  []string
	lengths []int
}

func (s *fakeSink) Enqueue(points []detector.Point3D, label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, label)
	s.lengths = append(s.lengths, len(points))
	return true
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.labels)
}

// mutableSettings lets tests flip settings between frames.
type mutableSettings struct {
	v atomic.Value
}

func newMutableSettings(s Settings) *mutableSettings {
	m := &mutableSettings{}
	m.v.Store(s)
	return m
}

func (m *mutableSettings) Current() Settings { return m.v.Load().(Settings) }
func (m *mutableSettings) Set(s Settings)    { m.v.Store(s) }

type harness struct {
	t      *testing.T
	orch   *Orchestrator
	cls    *fakeClassifier
	sink   *fakeSink
	events chan Event
}

func newHarness(t *testing.T, settings SettingsSource) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		cls:    &fakeClassifier{},
		sink:   &fakeSink{},
		events: make(chan Event, 64),
	}
	h.orch = New(h.cls, Options{
		Settings: settings,
		Sink:     h.sink,
		OnEvent:  func(ev Event) { h.events <- ev },
	})
	t.Cleanup(h.orch.Close)
	return h
}

// feed submits one frame, retrying while the lane finishes the previous one,
// and returns its event.
func (h *harness) feed(hands ...detector.HandLandmarks) Event {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !h.orch.Submit(hands) {
		if time.Now().After(deadline) {
			h.t.Fatal("orchestrator stayed busy")
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(2 * time.Second):
		h.t.Fatal("no event for frame")
		return Event{}
	}
}

func hand(shift float64) detector.HandLandmarks {
	return detector.Translate(detector.OpenPalmLandmarks(), shift, 0, 0)
}

func settingsWith(fn func(*Settings)) SettingsSource {
	s := DefaultSettings()
	fn(&s)
	return StaticSettings(s)
}

func TestSequenceModeClassifiesFullWindow(t *testing.T) {
	h := newHarness(t, nil)
	h.cls.setResult("hello", 0.9)

	for i := 1; i <= 9; i++ {
		ev := h.feed(detector.ThumbsUpLandmarks())
		if ev.Kind != EventAccumulating {
			t.Fatalf("frame %d: kind = %v, want accumulating", i, ev.Kind)
		}
		if ev.Buffered != i || ev.Target != 10 {
			t.Fatalf("frame %d: progress %d/%d", i, ev.Buffered, ev.Target)
		}
		if ev.Status() != fmtProgress(i) {
			t.Errorf("Status() = %q", ev.Status())
		}
	}
	if _, seq := h.cls.counts(); seq != 0 {
		t.Fatal("classified before the window was full")
	}

	ev := h.feed(detector.ThumbsUpLandmarks())
	if ev.Kind != EventDetected || ev.Label != "hello" {
		t.Fatalf("10th frame: %+v", ev)
	}
	if ev.Buffered != 0 {
		t.Errorf("buffer not emptied, Buffered = %d", ev.Buffered)
	}

	_, seq := h.cls.counts()
	if seq != 1 {
		t.Fatalf("sequence classifications = %d, want 1", seq)
	}
	if len(h.cls.sequences[0]) != 10 || h.cls.seqTargets[0] != 10 {
		t.Errorf("window of %d frames, target %d", len(h.cls.sequences[0]), h.cls.seqTargets[0])
	}
	if snap := h.orch.Snapshot(); snap.Buffered != 0 || snap.Label != "hello" {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func fmtProgress(i int) string {
	return (&Event{Kind: EventAccumulating, Buffered: i, Target: 10}).Status()
}

func TestWindowKeepsArrivalOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.cls.setResult("a", 0.9)

	var want []feature.Vector
	for i := 0; i < 10; i++ {
		hd := hand(0)
		hd.Points[detector.Wrist].Z = float64(i)
		want = append(want, feature.FromHand(&hd))
		h.feed(hd)
	}

	got := h.cls.sequences[0]
	for i := range want {
		if got[i][2] != want[i][2] {
			t.Errorf("frame %d z = %v, want %v", i, got[i][2], want[i][2])
		}
	}
}

func TestNoHandKeepsBuffer(t *testing.T) {
	h := newHarness(t, nil)
	h.cls.setResult("a", 0.9)

	h.feed(hand(0))
	h.feed(hand(0))
	ev := h.feed()
	if ev.Kind != EventNoHand {
		t.Fatalf("kind = %v, want no_hand", ev.Kind)
	}
	if ev.Buffered != 2 {
		t.Errorf("Buffered = %d after missed hand, want 2", ev.Buffered)
	}
	if ev := h.feed(hand(0)); ev.Buffered != 3 {
		t.Errorf("Buffered = %d, want 3", ev.Buffered)
	}
	if snap := h.orch.Snapshot(); !snap.HandDetected {
		t.Error("HandDetected should be true")
	}
}

func TestNoHandClearsLabel(t *testing.T) {
	h := newHarness(t, settingsWith(func(s *Settings) { s.SequenceMode = false }))
	h.cls.setResult("yes", 0.8)

	h.feed(hand(0))
	if snap := h.orch.Snapshot(); snap.Label != "yes" {
		t.Fatalf("Label = %q", snap.Label)
	}
	h.feed()
	snap := h.orch.Snapshot()
	if snap.Label != "" || snap.Confidence != 0 || snap.HandDetected {
		t.Errorf("Snapshot() after no hand = %+v", snap)
	}
}

func TestResetOnHandLoss(t *testing.T) {
	h := newHarness(t, settingsWith(func(s *Settings) { s.ResetOnHandLoss = true }))

	h.feed(hand(0))
	h.feed(hand(0))
	if ev := h.feed(); ev.Buffered != 0 {
		t.Errorf("Buffered = %d, want 0", ev.Buffered)
	}
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		confidence float32
		want       EventKind
	}{
		{0.49, EventRejected},
		{0.5, EventDetected},
		{0.51, EventDetected},
	}

	for _, tt := range tests {
		h := newHarness(t, settingsWith(func(s *Settings) {
			s.SequenceMode = false
			s.AdaptiveLearning = false
		}))
		h.cls.setResult("hello", tt.confidence)

		ev := h.feed(hand(0))
		if ev.Kind != tt.want {
			t.Errorf("confidence %v: kind = %v, want %v", tt.confidence, ev.Kind, tt.want)
		}
	}
}

func TestRejectedRetainsConfidence(t *testing.T) {
	h := newHarness(t, settingsWith(func(s *Settings) { s.SequenceMode = false }))
	h.cls.setResult("hello", 0.9)
	h.feed(hand(0))

	h.cls.setResult("hello", 0.3)
	ev := h.feed(hand(0))
	if ev.Label != "" {
		t.Errorf("rejected event label = %q", ev.Label)
	}
	snap := h.orch.Snapshot()
	if snap.Label != "" || snap.Confidence != 0.3 {
		t.Errorf("Snapshot() = %+v, want cleared label and 0.3", snap)
	}
}

func TestFailedClassification(t *testing.T) {
	h := newHarness(t, settingsWith(func(s *Settings) { s.SequenceMode = false }))

	if ev := h.feed(hand(0)); ev.Kind != EventFailed {
		t.Errorf("kind = %v, want failed", ev.Kind)
	}
}

func TestNaNConfidenceIsFailure(t *testing.T) {
	h := newHarness(t, settingsWith(func(s *Settings) { s.SequenceMode = false }))
	h.cls.setResult("hello", float32(math.NaN()))

	ev := h.feed(hand(0))
	if ev.Kind != EventFailed {
		t.Errorf("kind = %v, want %v", ev.Kind, EventFailed)
	}
	if ev.Label != "" || ev.Confidence != 0 {
		t.Errorf("event = %+v, want no label or confidence", ev)
	}
	if h.sink.count() != 0 {
		t.Error("NaN result reached the learning sink")
	}
}

func TestSequenceFailureStillEmptiesBuffer(t *testing.T) {
	h := newHarness(t, settingsWith(func(s *Settings) { s.WindowSize = 3 }))

	h.feed(hand(0))
	h.feed(hand(0))
	ev := h.feed(hand(0))
	if ev.Kind != EventFailed || ev.Buffered != 0 {
		t.Errorf("event = %+v, want failed with empty buffer", ev)
	}
}

func TestLearningHook(t *testing.T) {
	tests := []struct {
		name       string
		confidence float32
		adaptive   bool
		want       int
	}{
		{"confident", 0.7, true, 1},
		{"accepted but below learning floor", 0.69, true, 0},
		{"disabled", 0.95, false, 0},
		{"rejected", 0.4, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, settingsWith(func(s *Settings) {
				s.SequenceMode = false
				s.AdaptiveLearning = tt.adaptive
			}))
			h.cls.setResult("thanks", tt.confidence)

			ev := h.feed(hand(0))
			if got := h.sink.count(); got != tt.want {
				t.Fatalf("samples = %d, want %d", got, tt.want)
			}
			if ev.Learned != (tt.want == 1) {
				t.Errorf("Learned = %v", ev.Learned)
			}
			if tt.want == 1 {
				if h.sink.labels[0] != "thanks" || h.sink.lengths[0] != detector.NumLandmarks {
					t.Errorf("sample %q with %d points", h.sink.labels[0], h.sink.lengths[0])
				}
				if h.orch.Snapshot().Learned != 1 {
					t.Error("Snapshot().Learned not counted")
				}
			}
		})
	}
}

func TestDropsFramesWhileBusy(t *testing.T) {
	h := newHarness(t, settingsWith(func(s *Settings) { s.SequenceMode = false }))
	h.cls.setResult("a", 0.9)
	block := make(chan struct{})
	h.cls.mu.Lock()
	h.cls.block = block
	h.cls.mu.Unlock()

	if !h.orch.Submit([]detector.HandLandmarks{hand(0)}) {
		t.Fatal("first frame rejected")
	}
	for i := 0; i < 5; i++ {
		if h.orch.Submit([]detector.HandLandmarks{hand(0)}) {
			t.Fatal("frame accepted while busy")
		}
	}
	if !h.orch.Busy() {
		t.Error("Busy() = false during classification")
	}
	close(block)

	select {
	case ev := <-h.events:
		if ev.Frame != 1 {
			t.Errorf("Frame = %d, want 1", ev.Frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}

	single, _ := h.cls.counts()
	if single != 1 {
		t.Errorf("classifications = %d, want 1", single)
	}
	if got := h.orch.Snapshot().Dropped; got != 5 {
		t.Errorf("Dropped = %d, want 5", got)
	}
}

func TestEventsInArrivalOrder(t *testing.T) {
	h := newHarness(t, settingsWith(func(s *Settings) { s.SequenceMode = false }))
	h.cls.setResult("a", 0.9)

	var last uint64
	for i := 0; i < 20; i++ {
		ev := h.feed(hand(0))
		if ev.Frame <= last {
			t.Fatalf("frame %d after %d", ev.Frame, last)
		}
		last = ev.Frame
	}
	if snap := h.orch.Snapshot(); snap.Processed != 20 {
		t.Errorf("Processed = %d, want 20", snap.Processed)
	}
}

func TestModeSwitchClearsBuffer(t *testing.T) {
	settings := newMutableSettings(DefaultSettings())
	h := newHarness(t, settings)
	h.cls.setResult("a", 0.9)

	h.feed(hand(0))
	h.feed(hand(0))

	single := DefaultSettings()
	single.SequenceMode = false
	settings.Set(single)
	ev := h.feed(hand(0))
	if ev.Mode != ModeSingle || ev.Kind != EventDetected {
		t.Fatalf("event = %+v", ev)
	}

	settings.Set(DefaultSettings())
	ev = h.feed(hand(0))
	if ev.Kind != EventAccumulating || ev.Buffered != 1 {
		t.Errorf("after switching back: %+v, want fresh window", ev)
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t, nil)

	h.feed(hand(0))
	h.feed(hand(0))
	h.orch.Reset()
	if ev := h.feed(hand(0)); ev.Buffered != 1 {
		t.Errorf("Buffered = %d after Reset, want 1", ev.Buffered)
	}
}

func TestWindowSizeChange(t *testing.T) {
	settings := newMutableSettings(DefaultSettings())
	h := newHarness(t, settings)
	h.cls.setResult("a", 0.9)

	h.feed(hand(0))
	s := DefaultSettings()
	s.WindowSize = 2
	settings.Set(s)

	if ev := h.feed(hand(0)); ev.Target != 2 || ev.Buffered != 1 {
		t.Fatalf("event = %+v", ev)
	}
	if ev := h.feed(hand(0)); ev.Kind != EventDetected {
		t.Errorf("kind = %v, want detected", ev.Kind)
	}
	if h.cls.seqTargets[0] != 2 {
		t.Errorf("target = %d, want 2", h.cls.seqTargets[0])
	}
}

func TestClose(t *testing.T) {
	cls := &fakeClassifier{}
	o := New(cls, Options{})
	o.Close()
	o.Close()

	if o.Submit(nil) {
		t.Error("Submit after Close = true")
	}
}

func TestEventKindText(t *testing.T) {
	b, _ := EventDetected.MarshalText()
	if string(b) != "detected" {
		t.Errorf("MarshalText() = %s", b)
	}
	if EventKind(42).String() != "EventKind(42)" {
		t.Error("unexpected name for unknown kind")
	}
}
