package labels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidLabels is returned when a label file does not match the expected
// schema: a non-empty JSON array of unique, non-empty strings.
var ErrInvalidLabels = errors.New("invalid label file")

// LoadFile reads and validates a JSON label list.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return Parse(data)
}

// Parse validates a JSON label list.
func Parse(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var labels []string
	if err := dec.Decode(&labels); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLabels, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after label array", ErrInvalidLabels)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels", ErrInvalidLabels)
	}

	seen := make(map[string]int, len(labels))
	for i, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("%w: label %d is empty", ErrInvalidLabels, i)
		}
		if prev, ok := seen[l]; ok {
			return nil, fmt.Errorf("%w: label %q at %d duplicates %d", ErrInvalidLabels, l, i, prev)
		}
		seen[l] = i
	}

	return labels, nil
}
