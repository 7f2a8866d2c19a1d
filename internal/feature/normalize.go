// Package feature turns detected hand landmarks into classifier input vectors.
package feature

import (
	"fmt"

	"github.com/ayusman/handsign/internal/detector"
)

// Size is the length of every feature vector: 21 landmarks x 3 coordinates.
const Size = detector.NumLandmarks * 3

// ErrLandmarkCount is returned by Normalize for landmark sets that are not 21 points long.
var ErrLandmarkCount = detector.ErrLandmarkCount

// Vector is one frame's features laid out as x0,y0,z0,x1,y1,z1,...,x20,y20,z20.
type Vector []float32

// Normalize rescales the x and y channels of a 21-point landmark set to [0,1]
// using the frame's own bounding box. z is relative depth and is copied unchanged.
// A channel whose min and max coincide normalizes to 0.
func Normalize(points []detector.Point3D) (Vector, error) {
	if len(points) != detector.NumLandmarks {
		return nil, fmt.Errorf("%w: got %d", ErrLandmarkCount, len(points))
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}

	v := make(Vector, Size)
	for i, p := range points {
		v[i*3] = rescale(p.X, minX, maxX)
		v[i*3+1] = rescale(p.Y, minY, maxY)
		v[i*3+2] = float32(p.Z)
	}
	return v, nil
}

// FromHand normalizes a fixed-size hand. It cannot fail.
func FromHand(h *detector.HandLandmarks) Vector {
	v, _ := Normalize(h.Points[:])
	return v
}

// Raw flattens points without normalization, in the same x,y,z order.
func Raw(points []detector.Point3D) []float64 {
	out := make([]float64, 0, len(points)*3)
	for _, p := range points {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

func rescale(v, lo, hi float64) float32 {
	span := hi - lo
	if span == 0 {
		return 0
	}
	return float32((v - lo) / span)
}

// Valid reports whether v has exactly Size elements.
func (v Vector) Valid() bool {
	return len(v) == Size
}
