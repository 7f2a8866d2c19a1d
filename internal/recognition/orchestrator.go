// Package recognition turns a stream of per-frame hand detections into
// classification events. Frames are processed on a single lane; a frame that
// arrives while the previous one is still being classified is dropped.
package recognition

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/handsign/internal/classifier"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/feature"
	"github.com/ayusman/handsign/internal/window"
)

// Classifier is the inference surface the orchestrator drives.
type Classifier interface {
	ClassifySingle(ctx context.Context, v feature.Vector) *classifier.Result
	ClassifySequence(ctx context.Context, frames []feature.Vector, target int) *classifier.Result
}

// SampleSink receives confident predictions for adaptive learning. Enqueue
// must not block.
type SampleSink interface {
	Enqueue(points []detector.Point3D, label string) bool
}

// Options configures an Orchestrator.
type Options struct {
	Settings SettingsSource
	Sink     SampleSink

	// OnEvent is called on the processing lane for every processed frame.
	// It should return quickly; slow handlers cause frames to be dropped.
	OnEvent func(Event)

	Logger *slog.Logger
}

// Snapshot is the orchestrator state as of the last processed frame.
type Snapshot struct {
	Label        string  `json:"label"`
	Confidence   float32 `json:"confidence"`
	HandDetected bool    `json:"hand_detected"`
	Mode         Mode    `json:"mode"`
	Buffered     int     `json:"buffered"`
	Target       int     `json:"target"`
	Status       string  `json:"status"`
	Processed    uint64  `json:"processed"`
	Dropped      uint64  `json:"dropped"`
	Learned      uint64  `json:"learned"`
}

type frame struct {
	seq   uint64
	hands []detector.HandLandmarks
}

// Orchestrator owns the window buffer and drives the classifier.
type Orchestrator struct {
	classifier Classifier
	settings   SettingsSource
	sink       SampleSink
	onEvent    func(Event)
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	frames chan frame
	done   chan struct{}

	closeMu sync.RWMutex
	closed  bool

	busy         atomic.Bool
	resetPending atomic.Bool
	seq          atomic.Uint64
	dropped      atomic.Uint64

	// Lane-owned.
	buffer   *window.Buffer
	lastMode Mode

	mu    sync.Mutex
	state Snapshot
}

// New starts the processing lane.
func New(c Classifier, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings := opts.Settings
	if settings == nil {
		settings = StaticSettings(DefaultSettings())
	}

	cur := settings.Current()
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		classifier: c,
		settings:   settings,
		sink:       opts.Sink,
		onEvent:    opts.OnEvent,
		logger:     logger.With("component", "recognition"),
		ctx:        ctx,
		cancel:     cancel,
		frames:     make(chan frame, 1),
		done:       make(chan struct{}),
		buffer:     window.New(cur.windowSize()),
		lastMode:   cur.Mode(),
	}
	o.state.Mode = cur.Mode()
	o.state.Target = o.buffer.Size()

	go o.run()
	return o
}

// Submit hands one frame's detections to the lane without blocking. An empty
// hands slice means no hand was detected. It returns false, and counts the
// frame as dropped, when a previous frame is still being processed or the
// orchestrator is closed.
func (o *Orchestrator) Submit(hands []detector.HandLandmarks) bool {
	o.closeMu.RLock()
	defer o.closeMu.RUnlock()
	if o.closed {
		return false
	}

	if !o.busy.CompareAndSwap(false, true) {
		o.dropped.Add(1)
		return false
	}

	o.frames <- frame{seq: o.seq.Add(1), hands: hands}
	return true
}

// Busy reports whether a frame is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Reset clears the window before the next frame is processed.
func (o *Orchestrator) Reset() {
	o.resetPending.Store(true)
}

// Snapshot returns the state after the last processed frame.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	s := o.state
	o.mu.Unlock()
	s.Dropped = o.dropped.Load()
	return s
}

// Close stops accepting frames and waits for the in-flight one.
func (o *Orchestrator) Close() {
	o.closeMu.Lock()
	if !o.closed {
		o.closed = true
		close(o.frames)
	}
	o.closeMu.Unlock()

	<-o.done
	o.cancel()
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for f := range o.frames {
		ev := o.process(f)
		o.record(ev)
		if o.onEvent != nil {
			o.onEvent(ev)
		}
		o.busy.Store(false)
	}
}

func (o *Orchestrator) process(f frame) Event {
	settings := o.settings.Current()
	mode := settings.Mode()

	if o.resetPending.Swap(false) {
		o.buffer.Reset()
	}
	if mode != o.lastMode {
		o.logger.Info("classification mode changed", "from", o.lastMode, "to", mode)
		o.buffer.Reset()
		o.lastMode = mode
	}
	if size := settings.windowSize(); size != o.buffer.Size() {
		o.logger.Info("window size changed", "from", o.buffer.Size(), "to", size)
		o.buffer = window.New(size)
	}

	ev := Event{
		Frame:  f.seq,
		Mode:   mode,
		Target: o.buffer.Size(),
		Time:   time.Now(),
	}

	if len(f.hands) == 0 {
		if settings.ResetOnHandLoss {
			o.buffer.Reset()
		}
		ev.Kind = EventNoHand
		ev.Buffered = o.buffer.Len()
		return ev
	}

	hand := &f.hands[0]
	vec := feature.FromHand(hand)

	var res *classifier.Result
	if settings.SequenceMode {
		win, ready := o.buffer.Push(vec)
		if !ready {
			ev.Kind = EventAccumulating
			ev.Buffered = o.buffer.Len()
			return ev
		}
		res = o.classifier.ClassifySequence(o.ctx, win, o.buffer.Size())
	} else {
		res = o.classifier.ClassifySingle(o.ctx, vec)
	}
	ev.Buffered = o.buffer.Len()

	if res == nil || math.IsNaN(float64(res.Confidence)) {
		ev.Kind = EventFailed
		return ev
	}

	ev.Confidence = res.Confidence
	if res.Confidence < settings.MinConfidence {
		ev.Kind = EventRejected
		o.logger.Debug("below threshold", "label", res.Label, "confidence", res.Confidence, "min", settings.MinConfidence)
		return ev
	}

	ev.Kind = EventDetected
	ev.Label = res.Label

	if settings.AdaptiveLearning && o.sink != nil && res.Confidence >= settings.LearningConfidence {
		ev.Learned = o.sink.Enqueue(hand.Slice(), res.Label)
	}
	return ev
}

func (o *Orchestrator) record(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := &o.state
	s.Processed++
	s.Mode = ev.Mode
	s.Buffered = ev.Buffered
	s.Target = ev.Target
	s.Status = ev.Status()
	if ev.Learned {
		s.Learned++
	}

	switch ev.Kind {
	case EventNoHand:
		s.HandDetected = false
		s.Label = ""
		s.Confidence = 0
	case EventAccumulating:
		s.HandDetected = true
	case EventDetected:
		s.HandDetected = true
		s.Label = ev.Label
		s.Confidence = ev.Confidence
	case EventRejected:
		s.HandDetected = true
		s.Label = ""
		s.Confidence = ev.Confidence
	case EventFailed:
		s.HandDetected = true
		s.Label = ""
	}
}
