package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
)

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, s.registry.Snapshot())
	}
}

// runsHandler serves /api/runs/{id} and /api/runs/{id}/activity
func (s *Server) runsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if path == "" {
			writeError(w, http.StatusBadRequest, "run ID required")
			return
		}

		if id, ok := strings.CutSuffix(path, "/activity"); ok {
			entries, found := s.registry.Activities(id)
			if !found {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			writeJSON(w, map[string]interface{}{
				"run_id":  id,
				"entries": entries,
			})
			return
		}

		run, found := s.registry.Run(path)
		if !found {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, run)
	}
}

// enqueueHandler schedules a run for an issue. The dispatcher picks it up
// once a slot is free.
func (s *Server) enqueueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req struct {
			IssueNumber int `json:"issue_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.IssueNumber <= 0 {
			writeError(w, http.StatusBadRequest, "issue_number required")
			return
		}

		q := registry.QueuedRun{
			ID:          uuid.NewString(),
			Label:       fmt.Sprintf("issue %d", req.IssueNumber),
			IssueNumber: req.IssueNumber,
		}
		s.registry.Enqueue(q)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(q)
	}
}

func (s *Server) pauseHandler(pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		s.registry.SetPaused(pause)
		status := "resumed"
		if pause {
			status = "paused"
		}
		writeJSON(w, map[string]string{"status": status})
	}
}
