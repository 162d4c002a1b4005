// Package api serves the dashboard read API. All run data comes from the
// registry as copies; handlers never hold references into shared state.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
)

// Server is the dashboard HTTP server
type Server struct {
	registry *registry.Registry
	addr     string
	token    string // empty disables authentication
	mux      *http.ServeMux
	hub      *Hub
}

// NewServer creates the server. An empty token leaves the API open.
func NewServer(reg *registry.Registry, addr, token string) *Server {
	s := &Server{
		registry: reg,
		addr:     addr,
		token:    token,
		mux:      http.NewServeMux(),
		hub:      NewHub(reg),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/login", s.loginHandler())
	s.mux.HandleFunc("/api/logout", s.logoutHandler())

	s.mux.HandleFunc("/api/status", s.auth(s.statusHandler()))
	s.mux.HandleFunc("/api/runs", s.auth(s.enqueueHandler()))
	s.mux.HandleFunc("/api/runs/", s.auth(s.runsHandler()))
	s.mux.HandleFunc("/api/pause", s.auth(s.pauseHandler(true)))
	s.mux.HandleFunc("/api/resume", s.auth(s.pauseHandler(false)))
	s.mux.HandleFunc("/api/ws", s.auth(s.wsHandler()))
}

// Handler returns the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the hub and blocks serving HTTP
func (s *Server) Start() error {
	go s.hub.Run()
	return http.ListenAndServe(s.addr, s.mux)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
