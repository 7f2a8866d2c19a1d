package app

import (
	"errors"
	"strings"
	"sync"

	"github.com/ayusman/handsign/internal/recognition"
	"github.com/ayusman/handsign/internal/store"
)

// ErrEmptyTranscript is returned when saving or appending nothing.
var ErrEmptyTranscript = errors.New("transcript is empty")

// SnapshotSource reports the latest recognition state.
type SnapshotSource interface {
	Snapshot() recognition.Snapshot
}

// HistoryWriter stores saved transcripts.
type HistoryWriter interface {
	Create(h *store.HistoryEntry) error
}

// Transcript accumulates accepted labels into running text.
type Transcript struct {
	source  SnapshotSource
	history HistoryWriter

	mu    sync.Mutex
	words []string
}

// NewTranscript creates an empty transcript.
func NewTranscript(source SnapshotSource, history HistoryWriter) *Transcript {
	return &Transcript{source: source, history: history}
}

// Append adds label as the next word. Blank labels are ignored.
func (t *Transcript) Append(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyTranscript
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.words = append(t.words, label)
	return nil
}

// AppendCurrent appends the label currently on screen and returns it.
func (t *Transcript) AppendCurrent() (string, error) {
	if t.source == nil {
		return "", ErrEmptyTranscript
	}
	label := t.source.Snapshot().Label
	if err := t.Append(label); err != nil {
		return "", err
	}
	return label, nil
}

// Text returns the words joined by single spaces.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.words, " ")
}

// Clear drops every word.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.words = nil
}

// Save writes the text to history with the latest confidence. The transcript
// is kept so more words can follow.
func (t *Transcript) Save() (*store.HistoryEntry, error) {
	text := t.Text()
	if text == "" {
		return nil, ErrEmptyTranscript
	}
	if t.history == nil {
		return nil, errors.New("no history store")
	}

	var confidence float32
	if t.source != nil {
		confidence = t.source.Snapshot().Confidence
	}

	entry := &store.HistoryEntry{
		Text:       text,
		Type:       store.HistorySignToText,
		Confidence: float64(confidence),
	}
	if err := t.history.Create(entry); err != nil {
		return nil, err
	}
	return entry, nil
}
