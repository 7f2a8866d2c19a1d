// Package server provides the local HTTP API and the recognition event
// stream for handsign.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/server/api"
	"github.com/ayusman/handsign/internal/store"
)

// Config holds the server collaborators. Endpoints whose collaborator is nil
// are not mounted.
type Config struct {
	Store      *store.Store
	Plugins    api.PluginLookup
	Recognizer api.Recognizer
	Engine     api.EngineStatus
	Enabled    func() bool
	Settings   *app.RuntimeSettings
	Transcript *app.Transcript
	Learning   api.LearningStore
	Queue      api.QueueStats
	Hub        *Hub
	StaticDir  string
	Logger     *slog.Logger
}

// Server is the HTTP front of the application.
type Server struct {
	config Config
	router chi.Router
	logger *slog.Logger
	start  time.Time
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: logger.With("component", "server"),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		if s.config.Recognizer != nil {
			rh := api.NewRecognitionHandler(s.config.Recognizer, s.config.Engine, s.config.Enabled)
			r.Route("/status", rh.StatusRoutes)
			r.Route("/recognition", rh.Routes)
		}
		if s.config.Settings != nil {
			r.Route("/settings", api.NewSettingsHandler(s.config.Settings).Routes)
		}
		if s.config.Transcript != nil {
			r.Route("/transcript", api.NewTranscriptHandler(s.config.Transcript).Routes)
		}
		if s.config.Learning != nil {
			r.Route("/learning", api.NewLearningHandler(s.config.Learning, s.config.Queue).Routes)
		}
		if s.config.Store != nil {
			r.Route("/history", api.NewHistoryHandler(s.config.Store.History()).Routes)
			r.Route("/actions", api.NewActionHandler(s.config.Store.Actions(), s.config.Plugins).Routes)
		}
		if s.config.Hub != nil {
			r.Get("/events", s.config.Hub.ServeHTTP)
		}
	})

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and closes event stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
