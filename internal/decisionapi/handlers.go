package decisionapi

import (
	"encoding/json"
	"net/http"

	"github.com/flagforge/flagforge/internal/assign"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/targeting"
	"github.com/flagforge/flagforge/internal/telemetry"
)

// decideResponse is the wire shape spec'd for GET /decide.
type decideResponse struct {
	UserKey       string             `json:"user_key"`
	Environment   string             `json:"environment"`
	ConfigVersion int                `json:"config_version"`
	Assignments   []assign.Assignment `json:"assignments"`
}

// healthResponse reports, per known environment, the currently installed
// config version (nil if none has ever been installed).
type healthResponse struct {
	Status         string        `json:"status"`
	ConfigVersions map[string]*int `json:"config_versions"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	userKey := r.URL.Query().Get("user_key")
	env := r.URL.Query().Get("env")
	if userKey == "" || env == "" {
		writeError(w, model.NewValidationError("user_key and env are required query parameters"))
		return
	}

	var ctx targeting.Context
	if raw := r.URL.Query().Get("context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
			writeError(w, model.NewValidationError("context must be valid JSON"))
			return
		}
	}

	if err := s.Configs.EnsureRegistered(r.Context(), env); err != nil {
		telemetry.DecisionsTotal.WithLabelValues(env, "unavailable").Inc()
		writeError(w, model.NewConfigUnavailableError("no config available for environment "+env))
		return
	}

	snap, ok := s.Configs.Get(env)
	if !ok {
		telemetry.DecisionsTotal.WithLabelValues(env, "unavailable").Inc()
		writeError(w, model.NewConfigUnavailableError("no config available for environment "+env))
		return
	}

	assignments := assign.Assign(snap.Experiments, userKey, ctx)
	telemetry.DecisionsTotal.WithLabelValues(env, "ok").Inc()

	writeJSON(w, http.StatusOK, decideResponse{
		UserKey:       userKey,
		Environment:   env,
		ConfigVersion: snap.Version,
		Assignments:   assignments,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	versions := make(map[string]*int)
	for _, env := range s.Configs.Environments() {
		if snap, ok := s.Configs.Get(env); ok {
			v := snap.Version
			versions[env] = &v
		} else {
			versions[env] = nil
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ConfigVersions: versions})
}
