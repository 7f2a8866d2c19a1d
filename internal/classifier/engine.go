package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/handsign/internal/feature"
	"github.com/ayusman/handsign/internal/labels"
)

// DefaultSequenceLength is the window length sequence models are trained on.
const DefaultSequenceLength = 10

var (
	errInference = errors.New("inference failed")

	// errBusy is returned while an earlier model call, possibly abandoned by a
	// timeout, is still running.
	errBusy = errors.New("model call still running")
)

// probTolerance absorbs float32 rounding in softmax outputs.
const probTolerance = 1e-4

// Options tunes an Engine.
type Options struct {
	Logger *slog.Logger

	// Timeout bounds a single inference call. Zero disables it.
	Timeout time.Duration
}

// Engine owns a loaded model and classifies single frames or frame windows.
// Every failure resolves to a nil result; the reason is logged and, for
// permanent failures, reported by Err.
type Engine struct {
	model   Model
	codec   *labels.Codec
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup

	// running is held from model.Run start to return, not by the caller.
	running atomic.Bool

	failure atomic.Pointer[error]
}

// New wraps a loaded model. A nil model or an empty codec yields an engine
// that is unavailable from the start.
func New(model Model, codec *labels.Codec, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		model:   model,
		codec:   codec,
		timeout: opts.Timeout,
		logger:  logger.With("component", "classifier"),
	}

	switch {
	case model == nil:
		e.fail(fmt.Errorf("%w: no model loaded", ErrUnavailable))
	case codec == nil || codec.Size() == 0:
		e.fail(fmt.Errorf("%w: no labels loaded", ErrUnavailable))
	}
	return e
}

// Unavailable returns an engine that never classifies and reports err.
func Unavailable(err error, logger *slog.Logger) *Engine {
	e := New(nil, nil, Options{Logger: logger})
	e.failure.Store(&err)
	return e
}

// Available reports whether classify calls can produce results.
func (e *Engine) Available() bool {
	return e.Err() == nil
}

// Err returns the reason the engine is unavailable, or nil.
func (e *Engine) Err() error {
	if p := e.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// Labels returns the codec the engine decodes with. It may be nil.
func (e *Engine) Labels() *labels.Codec {
	return e.codec
}

func (e *Engine) fail(err error) {
	e.failure.CompareAndSwap(nil, &err)
}

// ClassifySingle classifies one normalized frame. It returns nil when the
// engine is unavailable, the vector is not 63 values long, or inference fails.
func (e *Engine) ClassifySingle(ctx context.Context, v feature.Vector) *Result {
	if !v.Valid() {
		e.logger.Warn("invalid feature vector", "size", len(v), "expected", feature.Size)
		return nil
	}

	res, err := e.infer(ctx, v, []int64{1, feature.Size})
	if err != nil {
		e.logFailure("single-frame classification failed", err)
		return nil
	}

	e.logger.Debug("classified frame", "label", res.Label, "index", res.Index, "confidence", res.Confidence)
	return res
}

// ClassifySequence classifies a window of normalized frames with a sequence
// model expecting target frames. Short windows are padded by repeating the
// last frame, long ones keep their most recent target frames. If the model
// fails at run time the last frame is classified on its own instead.
func (e *Engine) ClassifySequence(ctx context.Context, window []feature.Vector, target int) *Result {
	if len(window) == 0 {
		e.logger.Warn("empty sequence")
		return nil
	}
	if target < 1 {
		e.logger.Warn("invalid sequence length", "target", target)
		return nil
	}
	for i, v := range window {
		if !v.Valid() {
			e.logger.Warn("invalid frame in sequence", "frame", i, "size", len(v), "expected", feature.Size)
			return nil
		}
	}

	fitted := FitWindow(window, target)
	input := make([]float32, 0, target*feature.Size)
	for _, v := range fitted {
		input = append(input, v...)
	}

	res, err := e.infer(ctx, input, []int64{1, int64(target), feature.Size})
	if err != nil {
		if errors.Is(err, errInference) {
			e.logger.Warn("sequence classification failed, falling back to last frame", "error", err)
			return e.ClassifySingle(ctx, window[len(window)-1])
		}
		e.logFailure("sequence classification failed", err)
		return nil
	}

	e.logger.Debug("classified sequence", "label", res.Label, "confidence", res.Confidence, "frames", len(window), "target", target)
	return res
}

// FitWindow returns exactly target frames: window padded with copies of its
// last frame, or its last target frames. The input is not modified.
func FitWindow(window []feature.Vector, target int) []feature.Vector {
	if len(window) == 0 || target < 1 {
		return nil
	}
	if len(window) >= target {
		out := make([]feature.Vector, target)
		copy(out, window[len(window)-target:])
		return out
	}

	out := make([]feature.Vector, 0, target)
	out = append(out, window...)
	last := window[len(window)-1]
	for len(out) < target {
		pad := make(feature.Vector, len(last))
		copy(pad, last)
		out = append(out, pad)
	}
	return out
}

func (e *Engine) infer(ctx context.Context, input []float32, shape []int64) (*Result, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrClosed
	}
	if err := e.Err(); err != nil {
		e.mu.RUnlock()
		return nil, err
	}
	e.inflight.Add(1)
	e.mu.RUnlock()

	probs, err := e.run(ctx, input, shape)
	if err != nil {
		return nil, err
	}

	if len(probs) != e.codec.Size() {
		err := fmt.Errorf("%w: model returned %d values for %d labels", ErrLabelMismatch, len(probs), e.codec.Size())
		e.fail(err)
		return nil, err
	}

	for i, p := range probs {
		if math.IsNaN(float64(p)) || p < -probTolerance || p > 1+probTolerance {
			return nil, fmt.Errorf("%w: output %d is %v, not a probability", errInference, i, p)
		}
	}

	idx := argmax(probs)
	label, _ := e.codec.Decode(idx)
	return &Result{
		Label:      label,
		Index:      idx,
		Confidence: min(max(probs[idx], 0), 1),
	}, nil
}

// run calls the model, bounded by ctx and the configured timeout. It owns
// one inflight slot and releases it when the model call returns, even if the
// caller gave up earlier. At most one model call runs at a time; while an
// abandoned call is still running, run fails with errBusy.
func (e *Engine) run(ctx context.Context, input []float32, shape []int64) ([]float32, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.inflight.Done()
		return nil, errBusy
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type output struct {
		probs []float32
		err   error
	}
	done := make(chan output, 1)
	go func() {
		probs, err := e.model.Run(input, shape)
		if err != nil {
			err = fmt.Errorf("%w: %w", errInference, err)
		}
		e.running.Store(false)
		e.inflight.Done()
		done <- output{probs: probs, err: err}
	}()

	select {
	case out := <-done:
		return out.probs, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) logFailure(msg string, err error) {
	switch {
	case errors.Is(err, ErrClosed), errors.Is(err, ErrUnavailable):
		e.logger.Debug(msg, "error", err)
	case errors.Is(err, errBusy):
		e.logger.Warn(msg, "error", err)
	default:
		e.logger.Error(msg, "error", err)
	}
}

// Close releases the model. It waits for in-flight inference, is safe to
// call more than once, and leaves the engine permanently unavailable.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.fail(ErrClosed)
	e.inflight.Wait()

	if e.model == nil {
		return nil
	}
	if err := e.model.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	return nil
}
