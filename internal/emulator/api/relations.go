package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/verenigingen/eboekhouden-sync/internal/emulator/store"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

// RelationsHandler handles relation endpoints.
type RelationsHandler struct {
	store *store.Store
}

// NewRelationsHandler creates a new RelationsHandler.
func NewRelationsHandler(s *store.Store) *RelationsHandler {
	return &RelationsHandler{store: s}
}

// Get handles GET /v1/relation/{id}.
func (h *RelationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid relation ID")
		return
	}

	rel, err := h.store.GetRelation(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", "Relation not found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to get relation")
		return
	}

	writeJSON(w, http.StatusOK, rel)
}

// Create handles POST /v1/relation.
func (h *RelationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eboekhouden.Relation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}

	rel, err := h.store.CreateRelation(&req)
	if errors.Is(err, store.ErrInvalid) {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to create relation")
		return
	}

	writeJSON(w, http.StatusCreated, rel)
}
