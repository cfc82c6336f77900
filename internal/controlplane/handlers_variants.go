package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flagforge/flagforge/internal/audit"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/store"
)

// toVariantInputs builds the store's key-based replace payload from the
// experiment's current variants, copied unchanged; handleCreateVariant
// appends the new variant to it.
func toVariantInputs(exp model.Experiment) []store.VariantInput {
	out := make([]store.VariantInput, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		out = append(out, store.VariantInput{Key: v.Key, Name: v.Name, Payload: v.Payload})
	}
	return out
}

func (s *Server) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exp, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req variantCreateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}
	if req.Key == "" || req.Name == "" {
		writeError(w, model.NewValidationError("key and name are required"))
		return
	}

	inputs := append(toVariantInputs(exp), store.VariantInput{Key: req.Key, Name: req.Name, Payload: req.Payload})

	updated, err := s.Store.ReplaceVariants(r.Context(), id, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	s.publishIfNeeded(r.Context(), w.Header(), exp.EnvironmentID, exp.Status == model.StatusRunning)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionCreated, audit.ResourceTypeVariant, req.Key, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusCreated, updated)
}

func (s *Server) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	variantID := chi.URLParam(r, "variantID")

	exp, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	target, ok := variantByID(exp, variantID)
	if !ok {
		writeError(w, model.NewNotFoundError("variant not found"))
		return
	}

	var req variantUpdateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}

	name := target.Name
	if req.Name != nil {
		name = *req.Name
	}
	payload := target.Payload
	if req.Payload != nil {
		payload = req.Payload
	}

	inputs := make([]store.VariantInput, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		if v.ID == variantID {
			inputs = append(inputs, store.VariantInput{Key: v.Key, Name: name, Payload: payload})
			continue
		}
		inputs = append(inputs, store.VariantInput{Key: v.Key, Name: v.Name, Payload: v.Payload})
	}

	updated, err := s.Store.ReplaceVariants(r.Context(), id, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	s.publishIfNeeded(r.Context(), w.Header(), exp.EnvironmentID, exp.Status == model.StatusRunning)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionUpdated, audit.ResourceTypeVariant, variantID, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteVariant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	variantID := chi.URLParam(r, "variantID")

	exp, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, ok := variantByID(exp, variantID); !ok {
		writeError(w, model.NewNotFoundError("variant not found"))
		return
	}

	inputs := make([]store.VariantInput, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		if v.ID == variantID {
			continue
		}
		inputs = append(inputs, store.VariantInput{Key: v.Key, Name: v.Name, Payload: v.Payload})
	}

	updated, err := s.Store.ReplaceVariants(r.Context(), id, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	s.publishIfNeeded(r.Context(), w.Header(), exp.EnvironmentID, exp.Status == model.StatusRunning)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionDeleted, audit.ResourceTypeVariant, variantID, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleBatchVariants applies a create/update/delete batch as a single
// ReplaceVariants call so the uniqueness and not-referenced-by-allocation
// invariants are checked against the whole resulting set at once.
func (s *Server) handleBatchVariants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exp, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req variantBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}

	deleted := make(map[string]bool, len(req.Delete))
	for _, dID := range req.Delete {
		deleted[dID] = true
	}
	updates := make(map[string]variantUpdateInput, len(req.Update))
	for _, u := range req.Update {
		if deleted[u.ID] {
			writeError(w, model.NewValidationError("variant id appears in both update and delete: "+u.ID))
			return
		}
		updates[u.ID] = u
	}

	inputs := make([]store.VariantInput, 0, len(exp.Variants)+len(req.Create))
	for _, v := range exp.Variants {
		if deleted[v.ID] {
			continue
		}
		name := v.Name
		payload := v.Payload
		if u, ok := updates[v.ID]; ok {
			if u.Name != nil {
				name = *u.Name
			}
			if u.Payload != nil {
				payload = u.Payload
			}
		}
		inputs = append(inputs, store.VariantInput{Key: v.Key, Name: name, Payload: payload})
	}
	for _, c := range req.Create {
		if c.Key == "" || c.Name == "" {
			writeError(w, model.NewValidationError("key and name are required for every created variant"))
			return
		}
		inputs = append(inputs, store.VariantInput{Key: c.Key, Name: c.Name, Payload: c.Payload})
	}

	updated, err := s.Store.ReplaceVariants(r.Context(), id, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	s.publishIfNeeded(r.Context(), w.Header(), exp.EnvironmentID, exp.Status == model.StatusRunning)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionUpdated, audit.ResourceTypeVariant, id, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, updated)
}
