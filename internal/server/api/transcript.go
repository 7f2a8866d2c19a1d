package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/handsign/internal/app"
)

// TranscriptHandler builds and saves the running transcript.
type TranscriptHandler struct {
	transcript *app.Transcript
}

// NewTranscriptHandler creates a TranscriptHandler.
func NewTranscriptHandler(t *app.Transcript) *TranscriptHandler {
	return &TranscriptHandler{transcript: t}
}

// Routes registers the transcript endpoints on r.
func (h *TranscriptHandler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Delete("/", h.clear)
	r.Post("/append", h.append)
	r.Post("/save", h.save)
}

type transcriptResponse struct {
	Text string `json:"text"`
}

type appendRequest struct {
	// Label to append; empty appends the label currently recognized.
	Label string `json:"label"`
}

func (h *TranscriptHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, transcriptResponse{Text: h.transcript.Text()})
}

func (h *TranscriptHandler) append(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var err error
	if req.Label != "" {
		err = h.transcript.Append(req.Label)
	} else {
		_, err = h.transcript.AppendCurrent()
	}
	if errors.Is(err, app.ErrEmptyTranscript) {
		writeError(w, http.StatusConflict, "No label to append")
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse{Text: h.transcript.Text()})
}

func (h *TranscriptHandler) clear(w http.ResponseWriter, r *http.Request) {
	h.transcript.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *TranscriptHandler) save(w http.ResponseWriter, r *http.Request) {
	entry, err := h.transcript.Save()
	if err != nil {
		if errors.Is(err, app.ErrEmptyTranscript) {
			writeError(w, http.StatusConflict, "Transcript is empty")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save transcript")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
