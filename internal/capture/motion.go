package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate tuning.
const (
	// GaussianBlurSize is the blur kernel applied before differencing.
	GaussianBlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as changed.
	DiffThreshold = 25
	// MotionWidth is the width frames are scaled down to before comparison.
	MotionWidth = 160
)

// MotionDetector reports whether enough of the scene changed since the
// previous frame. It lets the frame loop skip hand detection while the view
// is still.
type MotionDetector struct {
	mu sync.Mutex

	threshold   float64
	prevGray    gocv.Mat
	initialized bool

	// Scratch buffers reused between frames.
	small   gocv.Mat
	gray    gocv.Mat
	blurred gocv.Mat
	diff    gocv.Mat
	mask    gocv.Mat
}

// NewMotionDetector creates a gate that fires when more than threshold
// percent of pixels change; 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
		small:     gocv.NewMat(),
		gray:      gocv.NewMat(),
		blurred:   gocv.NewMat(),
		diff:      gocv.NewMat(),
		mask:      gocv.NewMat(),
	}
}

// Detect compares a frame with the previous one and reports whether more
// than the threshold percentage of pixels changed, along with that
// percentage. The first frame after creation or Reset only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	src := *frame
	if frame.Cols() > MotionWidth {
		h := frame.Rows() * MotionWidth / frame.Cols()
		gocv.Resize(*frame, &m.small, image.Point{X: MotionWidth, Y: max(h, 1)}, 0, 0, gocv.InterpolationArea)
		src = m.small
	}

	if src.Channels() > 1 {
		gocv.CvtColor(src, &m.gray, gocv.ColorBGRToGray)
	} else {
		src.CopyTo(&m.gray)
	}
	gocv.GaussianBlur(m.gray, &m.blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != m.blurred.Rows() || m.prevGray.Cols() != m.blurred.Cols() {
		m.blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	gocv.AbsDiff(m.blurred, m.prevGray, &m.diff)
	gocv.Threshold(m.diff, &m.mask, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(m.mask)) / float64(m.mask.Rows()*m.mask.Cols()) * 100.0
	m.blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset drops the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
}

// Close releases the OpenCV buffers. The detector stays usable; buffers are
// reallocated on the next Detect.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mat := range []*gocv.Mat{&m.prevGray, &m.small, &m.gray, &m.blurred, &m.diff, &m.mask} {
		mat.Close()
		*mat = gocv.NewMat()
	}
	m.initialized = false
}

// Threshold returns the percentage of changed pixels that counts as motion.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold changes the motion threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}
