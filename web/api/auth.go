package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const sessionCookie = "agent_orch_session"

// auth wraps a handler with token authentication. With no token configured
// the API is open. A valid token is accepted either as a bearer header or as
// the session cookie set by login.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next(w, r)
			return
		}

		if bearer := r.Header.Get("Authorization"); bearer != "" {
			presented := strings.TrimPrefix(bearer, "Bearer ")
			if tokenMatches(presented, s.token) {
				next(w, r)
				return
			}
		}
		if cookie, err := r.Cookie(sessionCookie); err == nil && tokenMatches(cookie.Value, s.token) {
			next(w, r)
			return
		}

		writeError(w, http.StatusUnauthorized, "authentication required")
	}
}

func tokenMatches(presented, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

type loginRequest struct {
	Token string `json:"token"`
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.token == "" {
			writeJSON(w, map[string]string{"status": "open"})
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !tokenMatches(req.Token, s.token) {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    req.Token,
			Path:     "/api",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(24 * time.Hour),
		})
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    "",
			Path:     "/api",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
		})
		writeJSON(w, map[string]string{"status": "ok"})
	}
}
