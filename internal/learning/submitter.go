package learning

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ayusman/handsign/internal/detector"
)

// DefaultQueueSize bounds pending samples in a Submitter.
const DefaultQueueSize = 32

type sample struct {
	points []detector.Point3D
	label  string
}

// Submitter feeds a Store from a bounded queue drained by a single writer
// goroutine, so callers never wait on disk I/O.
type Submitter struct {
	store  *Store
	logger *slog.Logger
	queue  chan sample

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	accepted atomic.Int64
	rejected atomic.Int64
	dropped  atomic.Int64
}

// NewSubmitter starts the writer goroutine.
func NewSubmitter(store *Store, queueSize int, logger *slog.Logger) *Submitter {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Submitter{
		store:  store,
		logger: logger.With("component", "learning-submitter"),
		queue:  make(chan sample, queueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Submitter) run() {
	defer close(s.done)
	for smp := range s.queue {
		if s.store.Submit(smp.points, smp.label) {
			s.accepted.Add(1)
		} else {
			s.rejected.Add(1)
		}
	}
}

// Enqueue schedules a sample without blocking. It returns false when the
// queue is full or the submitter is closed.
func (s *Submitter) Enqueue(points []detector.Point3D, label string) bool {
	cp := make([]detector.Point3D, len(points))
	copy(cp, points)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	select {
	case s.queue <- sample{points: cp, label: label}:
		return true
	default:
		s.dropped.Add(1)
		s.logger.Warn("sample queue full, dropping", "label", label)
		return false
	}
}

// SubmitterStats counts samples by outcome.
type SubmitterStats struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Dropped  int64 `json:"dropped"`
}

func (s *Submitter) Stats() SubmitterStats {
	return SubmitterStats{
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// Close stops accepting samples and waits for queued ones to be written.
func (s *Submitter) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}
