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

const (
	defaultLimit = 100
	maxLimit     = 2000
)

// MutationsHandler handles mutation endpoints.
type MutationsHandler struct {
	store *store.Store
}

// NewMutationsHandler creates a new MutationsHandler.
func NewMutationsHandler(s *store.Store) *MutationsHandler {
	return &MutationsHandler{store: s}
}

// paging reads limit and offset query parameters.
func paging(r *http.Request) (offset, limit int, ok bool) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			return 0, 0, false
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return offset, limit, true
}

// List handles GET /v1/mutation.
func (h *MutationsHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := paging(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid limit or offset")
		return
	}

	q := r.URL.Query()
	filter := store.MutationFilter{
		DateFrom: q.Get("date[gte]"),
		DateTo:   q.Get("date[lte]"),
	}
	if v := q.Get("type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !eboekhouden.MutationType(n).Valid() {
			writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid type")
			return
		}
		t := eboekhouden.MutationType(n)
		filter.Type = &t
	}

	items, total, err := h.store.ListMutations(filter, offset, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to list mutations")
		return
	}

	writeJSON(w, http.StatusOK, eboekhouden.MutationsResponse{Items: items, Count: total})
}

// Get handles GET /v1/mutation/{id}.
func (h *MutationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid mutation ID")
		return
	}

	m, err := h.store.GetMutation(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", "Mutation not found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to get mutation")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// Create handles POST /v1/mutation.
func (h *MutationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eboekhouden.Mutation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}

	m, err := h.store.CreateMutation(&req)
	if errors.Is(err, store.ErrInvalid) {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to create mutation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": m.ID})
}
