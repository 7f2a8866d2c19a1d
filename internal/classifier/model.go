// Package classifier runs sign classification over normalized landmark features.
//
// The Engine is architecture-agnostic: it shapes input as [1, 63] for
// single-frame models and [1, T, 63] for sequence models, hands it to a Model,
// and decodes the returned probability vector through a label codec.
package classifier

import "errors"

var (
	// ErrUnavailable is reported when the engine has no usable model.
	ErrUnavailable = errors.New("classifier unavailable")

	// ErrLabelMismatch is reported when the model's output length differs from
	// the number of labels.
	ErrLabelMismatch = errors.New("model output size does not match label count")

	// ErrClosed is reported after Close.
	ErrClosed = errors.New("classifier closed")
)

// Model is a loaded inference model.
type Model interface {
	// Run executes inference on a flat float32 input of the given shape and
	// returns the flat probability output.
	Run(input []float32, shape []int64) ([]float32, error)

	// Close releases the model.
	Close() error
}

// Result is one classification: the winning label, its index in the label
// list and the probability the model assigned to it.
type Result struct {
	Label      string  `json:"label"`
	Index      int     `json:"index"`
	Confidence float32 `json:"confidence"`
}

// argmax returns the first index holding the maximum value.
func argmax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
