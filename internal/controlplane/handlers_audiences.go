package controlplane

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flagforge/flagforge/internal/audit"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/validation"
)

func (s *Server) handleCreateAudience(w http.ResponseWriter, r *http.Request) {
	var req createAudienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}
	if req.EnvironmentID == "" {
		writeError(w, model.NewValidationError("environmentId is required"))
		return
	}
	if err := validation.ValidateName("name", req.Name).Err("invalid audience"); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.ValidateTargetingRules(req.Rules).Err("invalid audience"); err != nil {
		writeError(w, err)
		return
	}

	aud, err := s.Store.CreateAudience(r.Context(), req.EnvironmentID, req.Name, req.Rules)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionCreated, audit.ResourceTypeAudience, aud.ID, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusCreated, aud)
}

func (s *Server) handleListAudiences(w http.ResponseWriter, r *http.Request) {
	envID := r.URL.Query().Get("environmentId")
	page, pageSize := parsePagination(r)

	result, err := s.Store.ListAudiences(r.Context(), envID, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope[model.Audience]{
		Data:       result.Items,
		Pagination: paginationOf(page, pageSize, result.Total),
	})
}

func (s *Server) handleGetAudience(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	aud, err := s.Store.GetAudience(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aud)
}

// handleUpdateAudience merges the request onto the current audience: a nil
// Name leaves the name unchanged, a nil Rules slice leaves the rules
// unchanged (send an explicit empty array to clear them). If the rules
// actually change and this audience is linked to any RUNNING experiment,
// an implicit publish fires for the audience's environment.
func (s *Server) handleUpdateAudience(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	current, err := s.Store.GetAudience(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateAudienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewValidationError("invalid request body"))
		return
	}

	name := current.Name
	if req.Name != nil {
		name = *req.Name
	}
	rules := current.Rules
	rulesChanged := false
	if req.Rules != nil {
		rules = req.Rules
		rulesChanged = !sameRules(current.Rules, req.Rules)
	}

	updated, err := s.Store.UpdateAudience(r.Context(), id, name, rules)
	if err != nil {
		writeError(w, err)
		return
	}

	shouldPublish := false
	if rulesChanged {
		linked, err := audienceHasRunningExperiments(r.Context(), s.Store, current.EnvironmentID, id)
		if err == nil {
			shouldPublish = linked
		}
	}
	s.publishIfNeeded(r.Context(), w.Header(), current.EnvironmentID, shouldPublish)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionUpdated, audit.ResourceTypeAudience, id, audit.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAudience(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	current, err := s.Store.GetAudience(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	linked, _ := audienceHasRunningExperiments(r.Context(), s.Store, current.EnvironmentID, id)

	if err := s.Store.DeleteAudience(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	s.publishIfNeeded(r.Context(), w.Header(), current.EnvironmentID, linked)

	if s.Audit != nil {
		s.Audit.LogFromContext(r.Context(), audit.ActionDeleted, audit.ResourceTypeAudience, id, audit.StatusSuccess)
	}
	w.WriteHeader(http.StatusNoContent)
}

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// parsePagination mirrors the store's own page/pageSize defaulting and
// clamping so the envelope written here always matches what was actually
// applied to the query.
func parsePagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page <= 0 {
		page = defaultPage
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func sameRules(a, b []model.TargetingRule) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}
