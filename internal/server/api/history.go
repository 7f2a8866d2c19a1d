package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/handsign/internal/store"
)

// DefaultHistoryLimit caps GET /api/history without a limit parameter.
const DefaultHistoryLimit = 100

// HistoryHandler serves saved transcripts.
type HistoryHandler struct {
	history *store.HistoryRepository
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(history *store.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// Routes registers the history endpoints on r.
func (h *HistoryHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Delete("/", h.clear)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
}

type listHistoryResponse struct {
	Entries []*store.HistoryEntry `json:"entries"`
}

func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.history.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}
	if entries == nil {
		entries = []*store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, listHistoryResponse{Entries: entries})
}

func (h *HistoryHandler) get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.history.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "History entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get history entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *HistoryHandler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.history.Clear()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *HistoryHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "History entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete history entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
