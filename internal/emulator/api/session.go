package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/verenigingen/eboekhouden-sync/internal/emulator/session"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create handles POST /v1/session.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eboekhouden.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}

	token, ttl, err := h.sessions.Create(req.AccessToken)
	if errors.Is(err, session.ErrInvalidAccessToken) {
		writeJSONError(w, http.StatusUnauthorized, "API_SESSION_001", "Invalid access token")
		return
	}
	if err != nil {
		slog.Error("failed to create session", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to create session")
		return
	}

	slog.Debug("session created", "source", req.Source)
	writeJSON(w, http.StatusOK, eboekhouden.SessionResponse{Token: token, ExpiresIn: int(ttl.Seconds())})
}

// Delete handles DELETE /v1/session.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(contextKeyToken).(string)
	if err := h.sessions.Revoke(token); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
