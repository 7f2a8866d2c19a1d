// Package testdata embeds recorded landmark sequences and a label file used
// by tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/ayusman/handsign/internal/detector"
)

//go:embed landmarks/*.json labels.json
var fixturesFS embed.FS

// Sequence is a recorded run of per-frame detections. A frame with no hands
// means the detector saw nothing.
type Sequence struct {
	Name   string
	Label  string
	Frames [][]detector.HandLandmarks
}

type jsonHand struct {
	Points     []detector.Point3D `json:"points"`
	Handedness string             `json:"handedness"`
	Score      float64            `json:"score"`
}

type jsonSequence struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Frames []struct {
		Hands []jsonHand `json:"hands"`
	} `json:"frames"`
}

// LoadSequence loads landmarks/<name>.json. Every hand must hold exactly 21
// points.
func LoadSequence(name string) (*Sequence, error) {
	data, err := fixturesFS.ReadFile(path.Join("landmarks", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}

	var raw jsonSequence
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode sequence %s: %w", name, err)
	}

	seq := &Sequence{Name: raw.Name, Label: raw.Label}
	for i, f := range raw.Frames {
		hands := make([]detector.HandLandmarks, 0, len(f.Hands))
		for _, h := range f.Hands {
			hl, err := detector.FromPoints(h.Points, h.Handedness, h.Score)
			if err != nil {
				return nil, fmt.Errorf("sequence %s frame %d: %w", name, i, err)
			}
			hands = append(hands, hl)
		}
		seq.Frames = append(seq.Frames, hands)
	}
	return seq, nil
}

// Sequences lists the embedded sequence names.
func Sequences() []string {
	entries, err := fixturesFS.ReadDir("landmarks")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names
}

// Labels returns the raw label file.
func Labels() []byte {
	data, _ := fixturesFS.ReadFile("labels.json")
	return data
}
