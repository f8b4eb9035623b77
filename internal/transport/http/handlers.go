package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"fluency/internal/app"
	"fluency/internal/domain"
	"fluency/internal/export"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateSessionRequest is the optional body for session creation
type CreateSessionRequest struct {
	Participant string `json:"participant"`
}

// CreateSessionResponse is the response for session creation
type CreateSessionResponse struct {
	SessionID   string `json:"sessionId"`
	Welcome     string `json:"welcome"`
	TotalTrials int    `json:"totalTrials"`
	SocketURL   string `json:"socketUrl"`
}

// GetSessionResponse is the response for getting session info
type GetSessionResponse struct {
	SessionID string                 `json:"sessionId"`
	Phase     string                 `json:"phase"`
	Connected bool                   `json:"connected"`
	State     map[string]interface{} `json:"state"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveSessions    int `json:"activeSessions"`
	ConnectedSessions int `json:"connectedSessions"`
	FinishedSessions  int `json:"finishedSessions"`
}

// handleCreateSession handles POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON")
			return
		}
	}

	session, err := s.hub.CreateSession(strings.TrimSpace(req.Participant))
	if err != nil {
		if errors.Is(err, domain.ErrTooManySessions) {
			s.sendError(w, http.StatusServiceUnavailable, "TOO_MANY_SESSIONS", "Session limit reached")
		} else {
			s.sendError(w, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create session")
		}
		return
	}

	// Build socket URL
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}

	s.sendJSON(w, http.StatusCreated, &CreateSessionResponse{
		SessionID:   session.GetID(),
		Welcome:     session.GetWelcome(),
		TotalTrials: session.GetTotalTrials(),
		SocketURL:   scheme + "://" + r.Host + "/ws?sessionId=" + session.GetID(),
	})
}

// handleGetSession handles GET /api/sessions/{sessionId}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	s.sendSuccess(w, &GetSessionResponse{
		SessionID: session.GetID(),
		Phase:     string(session.GetPhase()),
		Connected: session.IsConnected(),
		State:     session.GetState(),
	})
}

// handleResults handles GET /api/sessions/{sessionId}/results
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	results := session.Results()

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		if err := export.WriteJSON(w, session.GetID(), results); err != nil {
			s.logger.Error("failed to write results", "sessionID", session.GetID(), "error", err)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+session.GetID()+`.csv"`)
		if err := export.WriteCSV(w, session.GetID(), results); err != nil {
			s.logger.Error("failed to write results", "sessionID", session.GetID(), "error", err)
		}
	default:
		s.sendError(w, http.StatusBadRequest, "UNKNOWN_FORMAT", "format must be json or csv")
	}
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveSessions:    s.hub.GetSessionCount(),
		ConnectedSessions: s.hub.GetConnectedCount(),
		FinishedSessions:  s.hub.GetFinishedCount(),
	})
}

// lookup resolves the session named in the path, writing the error response
// when it cannot
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*app.ExperimentSession, bool) {
	id := r.PathValue("sessionId")
	if id == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_SESSION_ID", "Session ID is required")
		return nil, false
	}

	session, err := s.hub.GetSession(id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.sendError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found")
		} else {
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return nil, false
	}
	return session, true
}

// handleStatic serves static files
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	// Strip /static/ prefix
	path := strings.TrimPrefix(r.URL.Path, "/static/")

	file, err := s.webFS.Open("static/" + path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	seeker, ok := file.(io.ReadSeeker)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), seeker)
}

// handleSPA serves the single-page application
func (s *Server) handleSPA(w http.ResponseWriter, r *http.Request) {
	file, err := s.webFS.Open("index.html")
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	seeker, ok := file.(io.ReadSeeker)
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", stat.ModTime(), seeker)
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.sendJSON(w, http.StatusOK, data)
}

// sendJSON sends a successful JSON response with the given status
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
