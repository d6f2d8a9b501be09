// Package server provides the HTTP server for the sit-to-stand application.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/sitstand/internal/server/api"
	"github.com/ayusman/sitstand/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller api.Controller
}

// Server represents the HTTP server for the application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	stream *StreamHandler
	live   *LiveHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		stream: NewStreamHandler(),
		live:   NewLiveHandler(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.Controller != nil {
		live := api.NewLiveHandler(s.config.Controller, s.config.Store)
		s.mux.Handle("/api/session", live)
		s.mux.Handle("/api/session/", live)
	}

	s.mux.Handle("/api/stream", s.stream)
	s.mux.Handle("/api/live", s.live)

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Stream returns the MJPEG handler; feed it captured images.
func (s *Server) Stream() *StreamHandler {
	return s.stream
}

// Live returns the WebSocket handler; feed it frame results and events.
func (s *Server) Live() *LiveHandler {
	return s.live
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

	response := map[string]interface{}{
		"status":       "ok",
		"uptime":       time.Since(s.start).String(),
		"live_clients": s.live.ClientCount(),
	}
	if s.config.Controller != nil {
		response["session_active"] = s.config.Controller.Status().Active
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
