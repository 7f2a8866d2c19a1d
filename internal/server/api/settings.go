package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/handsign/internal/app"
)

// SettingsHandler reads and updates the runtime recognition preferences.
type SettingsHandler struct {
	settings *app.RuntimeSettings
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings *app.RuntimeSettings) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Routes registers GET and PUT on r.
func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Preferences())
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var patch app.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	prefs, err := h.settings.Update(patch)
	if err != nil {
		if errors.Is(err, app.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
