package recognition

import (
	"fmt"
	"time"
)

// Mode is the classification mode.
type Mode string

const (
	ModeSequence Mode = "sequence"
	ModeSingle   Mode = "single"
)

// EventKind classifies the outcome of one processed frame.
type EventKind int

const (
	// EventNoHand means the frame had no hand; the current label was cleared.
	EventNoHand EventKind = iota
	// EventAccumulating means the frame was buffered and the window is not full.
	EventAccumulating
	// EventDetected means a classification met the acceptance threshold.
	EventDetected
	// EventRejected means a classification fell below the threshold.
	EventRejected
	// EventFailed means the classifier produced no result.
	EventFailed
)

var eventNames = map[EventKind]string{
	EventNoHand:       "no_hand",
	EventAccumulating: "accumulating",
	EventDetected:     "detected",
	EventRejected:     "rejected",
	EventFailed:       "failed",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is emitted once per processed frame, in frame-arrival order.
type Event struct {
	Kind  EventKind `json:"kind"`
	Frame uint64    `json:"frame"`
	Mode  Mode      `json:"mode"`

	Label      string  `json:"label,omitempty"`
	Confidence float32 `json:"confidence"`

	// Buffered and Target describe window progress in sequence mode.
	Buffered int `json:"buffered"`
	Target   int `json:"target"`

	// Learned is set when the frame was queued for adaptive learning.
	Learned bool `json:"learned,omitempty"`

	Time time.Time `json:"time"`
}

// Status renders the event for display, e.g. "hello (87%)" or "4/10".
func (e Event) Status() string {
	switch e.Kind {
	case EventNoHand:
		return "no hand"
	case EventAccumulating:
		return fmt.Sprintf("%d/%d", e.Buffered, e.Target)
	case EventDetected:
		return fmt.Sprintf("%s (%.0f%%)", e.Label, e.Confidence*100)
	case EventRejected:
		return fmt.Sprintf("low confidence (%.0f%%)", e.Confidence*100)
	default:
		return "no result"
	}
}
