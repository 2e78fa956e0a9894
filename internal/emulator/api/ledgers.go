package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/verenigingen/eboekhouden-sync/internal/emulator/store"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

// LedgersHandler handles ledger endpoints.
type LedgersHandler struct {
	store *store.Store
}

// NewLedgersHandler creates a new LedgersHandler.
func NewLedgersHandler(s *store.Store) *LedgersHandler {
	return &LedgersHandler{store: s}
}

// List handles GET /v1/ledger.
func (h *LedgersHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := paging(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid limit or offset")
		return
	}

	ledgers, err := h.store.ListLedgers()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to list ledgers")
		return
	}

	total := len(ledgers)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, eboekhouden.LedgersResponse{Items: ledgers[offset:end], Count: total})
}

// Create handles POST /v1/ledger.
func (h *LedgersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eboekhouden.Ledger
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}

	ledger, err := h.store.CreateLedger(&req)
	if errors.Is(err, store.ErrInvalid) {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to create ledger")
		return
	}

	writeJSON(w, http.StatusCreated, ledger)
}
