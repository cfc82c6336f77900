package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flagforge/flagforge/internal/audit"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/store"
)

// handleReplaceAllocations replaces an experiment's entire allocation set
// in one transactional call. Incoming allocations reference variants by
// id (the wire model); the store's ReplaceAllocations addresses variants
// by key, so ids are translated against the experiment's current variants
// before the call.
func (s *Server) handleReplaceAllocations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exp, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req replaceAllocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}

	keyByID := variantKeyByID(exp)
	inputs := make([]store.AllocationInput, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		key, ok := keyByID[a.VariantID]
		if !ok {
			writeError(w, model.NewValidationError("allocation references an unknown variant id: "+a.VariantID))
			return
		}
		inputs = append(inputs, store.AllocationInput{VariantKey: key, RangeStart: a.RangeStart, RangeEnd: a.RangeEnd})
	}

	updated, err := s.Store.ReplaceAllocations(r.Context(), id, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	s.publishIfNeeded(r.Context(), w.Header(), exp.EnvironmentID, exp.Status == model.StatusRunning)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionUpdated, audit.ResourceTypeAllocation, id, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, updated)
}
