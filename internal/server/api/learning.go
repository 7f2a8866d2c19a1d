package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/handsign/internal/learning"
)

// LearningStore is the read and maintenance surface of the sample log.
type LearningStore interface {
	Stats() map[string]int
	TotalCount() int
	MaxPerLabel() int
	FileSize() int64
	Path() (string, bool)
	Clear() bool
	WriteTo(w io.Writer) (int64, error)
}

// QueueStats reports the async writer counters.
type QueueStats interface {
	Stats() learning.SubmitterStats
}

// LearningHandler exposes adaptive-learning statistics and the sample log.
type LearningHandler struct {
	store LearningStore
	queue QueueStats
}

// NewLearningHandler creates a LearningHandler. queue may be nil.
func NewLearningHandler(s LearningStore, queue QueueStats) *LearningHandler {
	return &LearningHandler{store: s, queue: queue}
}

// Routes registers the learning endpoints on r.
func (h *LearningHandler) Routes(r chi.Router) {
	r.Get("/stats", h.stats)
	r.Get("/export", h.export)
	r.Delete("/", h.clear)
}

type learningStatsResponse struct {
	Total       int                      `json:"total"`
	MaxPerLabel int                      `json:"max_per_label"`
	PerLabel    map[string]int           `json:"per_label"`
	FileSize    int64                    `json:"file_size"`
	Path        string                   `json:"path,omitempty"`
	Queue       *learning.SubmitterStats `json:"queue,omitempty"`
}

func (h *LearningHandler) stats(w http.ResponseWriter, r *http.Request) {
	resp := learningStatsResponse{
		Total:       h.store.TotalCount(),
		MaxPerLabel: h.store.MaxPerLabel(),
		PerLabel:    h.store.Stats(),
		FileSize:    h.store.FileSize(),
	}
	if p, ok := h.store.Path(); ok {
		resp.Path = p
	}
	if h.queue != nil {
		q := h.queue.Stats()
		resp.Queue = &q
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LearningHandler) export(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.store.Path(); !ok {
		writeError(w, http.StatusNotFound, "No training data collected")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+learning.FileName+`"`)
	w.WriteHeader(http.StatusOK)
	h.store.WriteTo(w)
}

func (h *LearningHandler) clear(w http.ResponseWriter, r *http.Request) {
	if !h.store.Clear() {
		writeError(w, http.StatusInternalServerError, "Failed to clear training data")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
