package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arcana-app/arcana/internal/domain"
)

// ─── Readings ───────────────────────────────────────────────────────────────

type createReadingRequest struct {
	SpreadID  string `json:"spread_id"`
	Intention string `json:"intention"`
}

// handleCreateReading draws and pays for a reading.
// POST /api/readings
func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var req createReadingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeFailure(w, r, fmt.Errorf("%w: request body: %v", domain.ErrInvalidInput, err))
		return
	}
	res, err := s.readings.CreateReading(r.Context(), AccountID(r.Context()), req.SpreadID, req.Intention)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleGetReading returns one of the caller's readings.
// GET /api/readings/{id}
func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	view, err := s.readings.GetReading(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleListReadings returns the caller's recent readings.
// GET /api/readings?limit=N
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	list, err := s.readings.History(r.Context(), AccountID(r.Context()), queryLimit(r, 20, 100))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"readings": list,
		"count":    len(list),
	})
}

// handleEntitlement returns the caller's spendable balances.
// GET /api/entitlement
func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	ent, err := s.readings.GetEntitlement(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// handleSpreads lists the catalog spreads and their costs.
// GET /api/spreads
func (s *Server) handleSpreads(w http.ResponseWriter, r *http.Request) {
	spreads := s.readings.Spreads()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spreads": spreads,
		"count":   len(spreads),
	})
}

// handleLedger returns the caller's recent ledger entries, newest first.
// GET /api/ledger?limit=N
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "ledger not available")
		return
	}
	entries, err := s.db.ListEntries(r.Context(), AccountID(r.Context()), queryLimit(r, 50, 500))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
