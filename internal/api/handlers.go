// Package api provides HTTP handlers for CookFlow endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/CookFlow/internal/models"
	"github.com/BTreeMap/CookFlow/internal/util"
)

// sessionsHandler handles collection-level session operations (POST /sessions).
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sessionsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.sessionsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// An empty body is a valid request for a fresh session.
	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Server.sessionsHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.sessionsHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.turnTimeout)
	defer cancel()
	state, err := s.orch.CreateSession(ctx, req.SessionID)
	if err != nil {
		slog.Error("Server.sessionsHandler: failed to create session", "error", err, "session_id", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}

	status := models.SessionStatus{
		SessionID:   state.SessionID,
		Constraints: state.Constraints,
		TurnCount:   state.TurnCount,
		Phase:       models.StateIdle,
		UpdatedAt:   state.UpdatedAt,
		Version:     state.Version,
	}
	slog.Info("Server.sessionsHandler: session created", "session_id", state.SessionID)
	writeJSONResponse(w, http.StatusCreated, models.Success(status))
}

// sessionHandler routes item-level session operations:
//
//	GET    /sessions/{id}
//	DELETE /sessions/{id}
//	POST   /sessions/{id}/turns
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sessionHandler: processing request", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	segments := strings.Split(path, "/")
	if segments[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Missing session id"))
		return
	}
	sessionID := segments[0]

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.getSessionHandler(w, r, sessionID)
		case http.MethodDelete:
			s.deleteSessionHandler(w, r, sessionID)
		default:
			w.Header().Set("Allow", "GET, DELETE")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	if len(segments) == 2 && segments[1] == "turns" {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.turnHandler(w, r, sessionID)
		return
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session endpoint"))
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, err := s.orch.SessionStatus(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			slog.Debug("Server.getSessionHandler: session not found", "session_id", sessionID)
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("Server.getSessionHandler: failed to load session", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

// deleteSessionHandler handles DELETE /sessions/{id}. Deleting an absent
// session succeeds so retries are safe.
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.orch.EndSession(ctx, sessionID); err != nil {
		slog.Error("Server.deleteSessionHandler: failed to end session", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to end session"))
		return
	}
	slog.Info("Server.deleteSessionHandler: session ended", "session_id", sessionID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session ended", nil))
}

// turnHandler handles POST /sessions/{id}/turns. The session id in the path
// wins over one in the body.
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	reqID := util.GenerateRequestID()

	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: failed to decode JSON", "error", err, "request_id", reqID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID != "" && req.SessionID != sessionID {
		slog.Debug("Server.turnHandler: body session id overridden by path",
			"body_session_id", req.SessionID, "session_id", sessionID, "request_id", reqID)
	}
	req.SessionID = sessionID

	ctx, cancel := context.WithTimeout(r.Context(), s.turnTimeout)
	defer cancel()

	resp, err := s.orch.ProcessTurn(ctx, &req)
	if err != nil {
		s.writeTurnError(w, sessionID, reqID, err)
		return
	}
	slog.Info("Server.turnHandler: turn processed",
		"session_id", sessionID, "request_id", reqID, "intent", resp.Intent, "verdict", resp.Verdict, "grounded", resp.Grounded)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// writeTurnError maps turn processing failures onto HTTP statuses.
func (s *Server) writeTurnError(w http.ResponseWriter, sessionID, reqID string, err error) {
	switch {
	case isBadTurnRequest(err):
		slog.Warn("Server.turnHandler: invalid request", "error", err, "session_id", sessionID, "request_id", reqID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.Is(err, models.ErrVersionConflict):
		slog.Warn("Server.turnHandler: version conflict", "error", err, "session_id", sessionID, "request_id", reqID)
		writeJSONResponse(w, http.StatusConflict, models.Error("Session was modified concurrently, retry the turn"))
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
	default:
		slog.Error("Server.turnHandler: failed to process turn", "error", err, "session_id", sessionID, "request_id", reqID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process turn"))
	}
}

// isBadTurnRequest reports whether the error is a client-side validation
// failure.
func isBadTurnRequest(err error) bool {
	return errors.Is(err, models.ErrEmptySessionID) ||
		errors.Is(err, models.ErrSessionIDTooLong) ||
		errors.Is(err, models.ErrEmptyUtterance) ||
		errors.Is(err, models.ErrUtteranceTooLong) ||
		errors.Is(err, models.ErrInvalidNegationCategory)
}

// healthHandler provides a health check endpoint for monitoring and load
// balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// Loading an arbitrary session exercises the store without changing it.
	if _, err := s.st.LoadConversationState(ctx, "health-check"); err != nil {
		slog.Warn("Server.healthHandler: store probe failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Session store unreachable"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, healthData)
}
