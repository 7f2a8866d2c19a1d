package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/handsign/internal/recognition"
)

// Recognizer is the orchestrator surface used by the API.
type Recognizer interface {
	Snapshot() recognition.Snapshot
	Reset()
}

// EngineStatus reports whether the classifier can serve.
type EngineStatus interface {
	Available() bool
	Err() error
}

// RecognitionHandler exposes live recognition state.
type RecognitionHandler struct {
	recognizer Recognizer
	engine     EngineStatus
	enabled    func() bool
}

// NewRecognitionHandler creates a RecognitionHandler. enabled reports whether
// the frame loop is detecting; nil reports true.
func NewRecognitionHandler(rec Recognizer, engine EngineStatus, enabled func() bool) *RecognitionHandler {
	return &RecognitionHandler{recognizer: rec, engine: engine, enabled: enabled}
}

// StatusRoutes registers GET / on r.
func (h *RecognitionHandler) StatusRoutes(r chi.Router) {
	r.Get("/", h.status)
}

// Routes registers the recognition control endpoints on r.
func (h *RecognitionHandler) Routes(r chi.Router) {
	r.Post("/reset", h.reset)
}

type statusResponse struct {
	recognition.Snapshot
	Enabled         bool   `json:"enabled"`
	EngineAvailable bool   `json:"engine_available"`
	EngineError     string `json:"engine_error,omitempty"`
}

func (h *RecognitionHandler) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Snapshot: h.recognizer.Snapshot(),
		Enabled:  h.enabled == nil || h.enabled(),
	}
	if h.engine != nil {
		resp.EngineAvailable = h.engine.Available()
		if err := h.engine.Err(); err != nil {
			resp.EngineError = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RecognitionHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.recognizer.Reset()
	w.WriteHeader(http.StatusAccepted)
}
