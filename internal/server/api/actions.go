package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/handsign/internal/plugin"
	"github.com/ayusman/handsign/internal/store"
)

// PluginLookup resolves plugins so bindings can be checked on write.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// ActionHandler serves the label to plugin action bindings.
type ActionHandler struct {
	actions *store.ActionRepository
	plugins PluginLookup
}

// NewActionHandler creates an ActionHandler. With a nil plugins lookup,
// bindings are stored unchecked.
func NewActionHandler(actions *store.ActionRepository, plugins PluginLookup) *ActionHandler {
	return &ActionHandler{actions: actions, plugins: plugins}
}

// Routes registers the collection and item endpoints on r.
func (h *ActionHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.load)
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
	})
}

type actionKey struct{}

// load resolves {id} and stores the action in the request context.
func (h *ActionHandler) load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := h.actions.GetByID(chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Action not found")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "Failed to get action")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actionKey{}, a)))
	})
}

func actionFrom(r *http.Request) *store.Action {
	return r.Context().Value(actionKey{}).(*store.Action)
}

// actionBody is the create and update payload. Absent fields keep their
// current value on update.
type actionBody struct {
	Label      *string         `json:"label"`
	PluginName *string         `json:"plugin_name"`
	ActionName *string         `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

func (b actionBody) apply(a *store.Action) {
	if b.Label != nil {
		if l := strings.TrimSpace(*b.Label); l != "" {
			a.Label = l
		}
	}
	if b.PluginName != nil && *b.PluginName != "" {
		a.PluginName = *b.PluginName
	}
	if b.ActionName != nil && *b.ActionName != "" {
		a.ActionName = *b.ActionName
	}
	if b.Config != nil {
		a.Config = b.Config
	}
	if b.Enabled != nil {
		a.Enabled = *b.Enabled
	}
}

type actionView struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

func viewAction(a *store.Action) actionView {
	cfg := a.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage("{}")
	}
	return actionView{
		ID:         a.ID,
		Label:      a.Label,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     cfg,
		Enabled:    a.Enabled,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

// validate returns a client-facing message when the binding is incomplete or
// cannot run.
func (h *ActionHandler) validate(a *store.Action) string {
	switch {
	case a.Label == "":
		return "label is required"
	case a.PluginName == "":
		return "plugin_name is required"
	case a.ActionName == "":
		return "action_name is required"
	case h.plugins == nil:
		return ""
	}
	p, err := h.plugins.Get(a.PluginName)
	if err != nil {
		return "Plugin not found"
	}
	if !p.Supports(a.ActionName) {
		return "Plugin does not support action " + a.ActionName
	}
	return ""
}

func (h *ActionHandler) list(w http.ResponseWriter, r *http.Request) {
	actions, err := h.actions.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}
	views := make([]actionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, viewAction(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": views})
}

func (h *ActionHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewAction(actionFrom(r)))
}

func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request) {
	var body actionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	a := &store.Action{Config: json.RawMessage("{}"), Enabled: true}
	body.apply(a)
	if msg := h.validate(a); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.actions.Create(a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}
	writeJSON(w, http.StatusCreated, viewAction(a))
}

func (h *ActionHandler) update(w http.ResponseWriter, r *http.Request) {
	var body actionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	a := actionFrom(r)
	body.apply(a)
	if msg := h.validate(a); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.actions.Update(a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}
	writeJSON(w, http.StatusOK, viewAction(a))
}

func (h *ActionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.Delete(actionFrom(r).ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete action")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
