// Package window accumulates normalized frames into fixed-length windows for
// sequence classification.
package window

import "github.com/ayusman/handsign/internal/feature"

// DefaultSize is the number of frames in a window.
const DefaultSize = 10

// State reports whether a buffer is still collecting frames.
type State int

const (
	Accumulating State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Buffer is a bounded FIFO of feature vectors. It is not safe for concurrent
// use; one goroutine owns it.
type Buffer struct {
	size   int
	frames []feature.Vector
}

// New creates an empty buffer yielding windows of size frames. Sizes below 1
// use DefaultSize.
func New(size int) *Buffer {
	if size < 1 {
		size = DefaultSize
	}
	return &Buffer{
		size:   size,
		frames: make([]feature.Vector, 0, size),
	}
}

// Push appends v. When the buffer reaches its size it returns the full window
// in arrival order and empties itself; otherwise it returns nil, false.
func (b *Buffer) Push(v feature.Vector) ([]feature.Vector, bool) {
	b.frames = append(b.frames, v)
	if len(b.frames) < b.size {
		return nil, false
	}

	win := b.frames
	b.frames = make([]feature.Vector, 0, b.size)
	return win, true
}

// Reset discards buffered frames.
func (b *Buffer) Reset() {
	clear(b.frames)
	b.frames = b.frames[:0]
}

func (b *Buffer) Len() int  { return len(b.frames) }
func (b *Buffer) Size() int { return b.size }

// State is Ready only transiently: Push hands a full window out immediately,
// so an observed buffer is normally Accumulating.
func (b *Buffer) State() State {
	if len(b.frames) >= b.size {
		return Ready
	}
	return Accumulating
}
