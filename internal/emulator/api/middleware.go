// Package api implements the emulated e-Boekhouden REST endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/verenigingen/eboekhouden-sync/internal/emulator/session"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

type contextKey string

const contextKeyToken contextKey = "token"

// AuthMiddleware validates the session token in the Authorization header.
func AuthMiddleware(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("Authorization")
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "API_SESSION_002", "Missing Authorization header")
				return
			}

			valid, err := sessions.Validate(token)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to validate session")
				return
			}
			if !valid {
				writeJSONError(w, http.StatusUnauthorized, "API_SESSION_003", "Invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an error in the e-Boekhouden error format.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, eboekhouden.ErrorResponse{
		Type:    "error",
		Code:    code,
		Title:   http.StatusText(status),
		Message: message,
	})
}
