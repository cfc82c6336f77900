package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flagforge/flagforge/internal/audit"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/validation"
)

func (s *Server) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	var req createEnvironmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}
	if err := validation.ValidateName("name", req.Name).Err("invalid environment"); err != nil {
		writeError(w, err)
		return
	}

	env, err := s.Store.CreateEnvironment(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionCreated, audit.ResourceTypeEnvironment, env.ID, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusCreated, env)
}

func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := s.Store.ListEnvironments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope[model.Environment]{
		Data:       envs,
		Pagination: paginationOf(1, len(envs), len(envs)),
	})
}

func (s *Server) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	env, err := s.Store.GetEnvironment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleDeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.DeleteEnvironment(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionDeleted, audit.ResourceTypeEnvironment, id, audit.StatusSuccess)
	}
	w.WriteHeader(http.StatusNoContent)
}
