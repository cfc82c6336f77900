package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flagforge/flagforge/internal/audit"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/store"
	"github.com/flagforge/flagforge/internal/validation"
)

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}
	if req.EnvironmentID == "" {
		writeError(w, model.NewValidationError("environmentId is required"))
		return
	}
	if err := validation.ValidateExperimentCreate(req.Key, req.Name, req.Description, req.TargetingRules).Err("invalid experiment"); err != nil {
		writeError(w, err)
		return
	}

	exp, err := s.Store.CreateExperiment(r.Context(), req.EnvironmentID, req.Key, req.Name, req.Description, req.AudienceID, req.TargetingRules)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionCreated, audit.ResourceTypeExperiment, exp.ID, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := store.ExperimentFilter{
		EnvironmentID: r.URL.Query().Get("environmentId"),
		Page:          page,
		PageSize:      pageSize,
	}
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		st := model.Status(statusParam)
		filter.Status = &st
	}

	result, err := s.Store.ListExperiments(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope[model.Experiment]{
		Data:       result.Items,
		Pagination: paginationOf(page, pageSize, result.Total),
	})
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exp, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// handleUpdateExperiment merges the request onto the current experiment.
// A RUNNING experiment whose targeting rules actually change triggers an
// implicit publish.
func (s *Server) handleUpdateExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	current, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}

	name := current.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := current.Description
	if req.Description != nil {
		description = *req.Description
	}
	audienceID := current.AudienceID
	if req.AudienceID != nil {
		audienceID = req.AudienceID
	}
	targetingRules := current.TargetingRules
	rulesChanged := false
	if req.TargetingRules != nil {
		targetingRules = req.TargetingRules
		rulesChanged = !sameRules(current.TargetingRules, req.TargetingRules)
	}

	updated, err := s.Store.UpdateExperiment(r.Context(), id, name, description, audienceID, targetingRules)
	if err != nil {
		writeError(w, err)
		return
	}

	shouldPublish := current.Status == model.StatusRunning && rulesChanged
	s.publishIfNeeded(r.Context(), w.Header(), current.EnvironmentID, shouldPublish)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionUpdated, audit.ResourceTypeExperiment, id, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteExperiment always republishes its environment: a deleted
// RUNNING experiment must stop appearing in the next snapshot, and a
// deleted DRAFT/PAUSED/ARCHIVED one cannot change the set of currently
// RUNNING experiments, so the publish is always safe to fire.
func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	current, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.Store.DeleteExperiment(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	s.publishIfNeeded(r.Context(), w.Header(), current.EnvironmentID, true)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionDeleted, audit.ResourceTypeExperiment, id, audit.StatusSuccess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateExperimentStatus performs a status transition and always
// publishes afterward: every legal transition either starts, stops, or
// otherwise changes the running set for the environment.
func (s *Server) handleUpdateExperimentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}
	if !model.ValidStatus(req.Status) {
		writeError(w, model.NewValidationError("unknown status"))
		return
	}

	updated, err := s.Store.UpdateExperimentStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	s.publishIfNeeded(r.Context(), w.Header(), updated.EnvironmentID, true)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionUpdated, audit.ResourceTypeExperiment, id, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleExplicitPublish is a direct call to Publisher.Publish; unlike the
// implicit triggers elsewhere, a failure here is reported as the request's
// own error response rather than just a header.
func (s *Server) handleExplicitPublish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exp, err := s.Store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := s.Publisher.Publish(r.Context(), exp.EnvironmentID)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionPublished, audit.ResourceTypeExperiment, id, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, snapshot)
}
