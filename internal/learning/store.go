// Package learning keeps a capped, label-partitioned log of landmark samples
// collected from confident live predictions, for later retraining.
package learning

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/feature"
)

const (
	// FileName is the sample log inside the store root.
	FileName = "user_training_data.csv"

	// DefaultMaxPerLabel caps the samples kept for one label.
	DefaultMaxPerLabel = 100

	timestampLayout = "2006-01-02 15:04:05"
)

// Header returns the column names of the sample log.
func Header() []string {
	cols := make([]string, 0, 2+feature.Size)
	cols = append(cols, "label")
	for i := 0; i < detector.NumLandmarks; i++ {
		n := strconv.Itoa(i)
		cols = append(cols, "x"+n, "y"+n, "z"+n)
	}
	return append(cols, "timestamp")
}

// Option configures a Store.
type Option func(*Store)

// WithMaxPerLabel sets the per-label cap. Values below 1 are ignored.
func WithMaxPerLabel(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxPerLabel = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is an append-only CSV log of samples. All methods are safe for
// concurrent use; writes are serialized. I/O failures are logged and reported
// as rejected writes or empty reads.
type Store struct {
	root        string
	maxPerLabel int
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	counts map[string]int // nil until the log has been scanned
	total  int
}

// New creates a store rooted at root. Nothing is written until the first
// accepted sample.
func New(root string, opts ...Option) *Store {
	s := &Store{
		root:        root,
		maxPerLabel: DefaultMaxPerLabel,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "learning")
	return s
}

func (s *Store) file() string {
	return filepath.Join(s.root, FileName)
}

// MaxPerLabel returns the per-label cap.
func (s *Store) MaxPerLabel() int { return s.maxPerLabel }

// Submit appends one sample. It returns false without writing when the point
// count is not 21, the label is empty, the label is at its cap, or the write
// fails.
func (s *Store) Submit(points []detector.Point3D, label string) bool {
	if len(points) != detector.NumLandmarks {
		s.logger.Warn("rejected sample", "label", label, "points", len(points), "expected", detector.NumLandmarks)
		return false
	}
	if label == "" {
		s.logger.Warn("rejected sample without label")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		s.logger.Error("read sample log", "error", err)
		return false
	}
	if n := s.counts[label]; n >= s.maxPerLabel {
		s.logger.Debug("label at capacity", "label", label, "count", n, "max", s.maxPerLabel)
		return false
	}

	if err := s.appendLocked(points, label); err != nil {
		s.logger.Error("write sample", "label", label, "error", err)
		return false
	}

	s.counts[label]++
	s.total++
	s.logger.Debug("saved sample", "label", label, "count", s.counts[label])
	return true
}

func (s *Store) appendLocked(points []detector.Point3D, label string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	f, err := os.OpenFile(s.file(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open sample log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat sample log: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		w.Write(Header())
	}
	w.Write(s.row(points, label))
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}

	if err := writeOrRollback(f, info.Size(), buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type logFile interface {
	io.Writer
	Truncate(size int64) error
}

// writeOrRollback appends data and, if the write fails, cuts the file back
// to size so a partial row never reaches the log.
func writeOrRollback(f logFile, size int64, data []byte) error {
	if _, err := f.Write(data); err != nil {
		if terr := f.Truncate(size); terr != nil {
			return errors.Join(fmt.Errorf("append sample: %w", err), fmt.Errorf("roll back sample log: %w", terr))
		}
		return fmt.Errorf("append sample: %w", err)
	}
	return nil
}

func (s *Store) row(points []detector.Point3D, label string) []string {
	row := make([]string, 0, 2+feature.Size)
	row = append(row, label)
	for _, v := range feature.Raw(points) {
		row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return append(row, s.now().Format(timestampLayout))
}

// loadLocked scans the log once to seed the per-label counts.
func (s *Store) loadLocked() error {
	if s.counts != nil {
		return nil
	}

	counts := make(map[string]int)
	total := 0

	f, err := os.Open(s.file())
	if errors.Is(err, fs.ErrNotExist) {
		s.counts = counts
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("parse sample log: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		counts[rec[0]]++
		total++
	}

	s.counts = counts
	s.total = total
	return nil
}

// CountFor returns the number of stored samples for label.
func (s *Store) CountFor(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		s.logger.Error("count samples", "error", err)
		return 0
	}
	return s.counts[label]
}

// TotalCount returns the number of stored samples across all labels.
func (s *Store) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		s.logger.Error("count samples", "error", err)
		return 0
	}
	return s.total
}

// Stats returns the sample count per label.
func (s *Store) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]int)
	if err := s.loadLocked(); err != nil {
		s.logger.Error("read learning stats", "error", err)
		return stats
	}
	for label, n := range s.counts {
		stats[label] = n
	}
	return stats
}

// Clear deletes every stored sample.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.file()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("clear sample log", "error", err)
		return false
	}
	s.counts = make(map[string]int)
	s.total = 0
	s.logger.Info("training data cleared")
	return true
}

// Path returns the log location, and false when nothing has been written yet.
func (s *Store) Path() (string, bool) {
	p := s.file()
	if _, err := os.Stat(p); err != nil {
		return p, false
	}
	return p, true
}

// FileSize returns the log size in bytes, 0 when it does not exist.
func (s *Store) FileSize() int64 {
	info, err := os.Stat(s.file())
	if err != nil {
		return 0
	}
	return info.Size()
}

// WriteTo copies the log to w. A missing log writes nothing.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.file())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open sample log: %w", err)
	}
	defer f.Close()
	return io.Copy(w, f)
}
