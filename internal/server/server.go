// Package server provides the HTTP server for the detection service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signify/internal/capture"
	"github.com/ayusman/signify/internal/server/api"
	"github.com/ayusman/signify/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	App        api.Controller
	Classifier string
	// Preview is the camera preview cache; nil disables /api/stream.
	Preview *capture.JPEGCache
	// StateInterval is the WebSocket broadcast cadence.
	StateInterval time.Duration
	Log           logrus.FieldLogger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	hub    *StateHub
	srv    *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Log == nil {
		config.Log = logrus.StandardLogger()
	}
	if config.StateInterval <= 0 {
		config.StateInterval = 100 * time.Millisecond
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/config", api.NewConfigHandler(s.config.Classifier))

	if s.config.App != nil {
		sessionHandler := api.NewSessionHandler(s.config.App)
		s.mux.Handle("/api/session", sessionHandler)
		s.mux.Handle("/api/session/", sessionHandler)
		s.mux.Handle("/api/labels", api.NewLabelsHandler(s.config.App))

		s.hub = NewStateHub(func() any { return s.config.App.State() }, s.config.StateInterval, s.config.Log)
		s.mux.Handle("/api/state", s.hub)
	}

	if s.config.Store != nil {
		s.mux.Handle("/api/detections", api.NewDetectionsHandler(s.config.Store))
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.srv.Addr = addr
	if s.hub != nil {
		go s.hub.Run()
	}

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the broadcast loop and gracefully closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.srv.Shutdown(ctx)
}
