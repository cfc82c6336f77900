package controlplane

import (
	"context"

	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/store"
)

// audienceHasRunningExperiments reports whether any RUNNING experiment in
// envID references audienceID.
func audienceHasRunningExperiments(ctx context.Context, s store.Store, envID, audienceID string) (bool, error) {
	running, err := s.ListRunningExperiments(ctx, envID)
	if err != nil {
		return false, err
	}
	for _, exp := range running {
		if exp.AudienceID != nil && *exp.AudienceID == audienceID {
			return true, nil
		}
	}
	return false, nil
}

// variantKeyByID builds an id -> key lookup from an experiment's current
// variants, used to translate the wire model (which addresses variants and
// allocations by id) onto the store's key-based replace primitives.
func variantKeyByID(exp model.Experiment) map[string]string {
	m := make(map[string]string, len(exp.Variants))
	for _, v := range exp.Variants {
		m[v.ID] = v.Key
	}
	return m
}

func variantByID(exp model.Experiment, id string) (model.Variant, bool) {
	for _, v := range exp.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return model.Variant{}, false
}
