package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flagforge/flagforge/internal/model"
)

// MemoryStore is an in-memory Store implementation backed by maps guarded
// by a single RWMutex. Suitable for development, testing, and the seeded
// end-to-end scenarios; not durable across restarts.
type MemoryStore struct {
	mu sync.RWMutex

	environments map[string]model.Environment
	audiences    map[string]model.Audience
	experiments  map[string]model.Experiment
	versions     map[string][]model.ConfigVersion // envID -> versions, ascending
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		environments: make(map[string]model.Environment),
		audiences:    make(map[string]model.Audience),
		experiments:  make(map[string]model.Experiment),
		versions:     make(map[string][]model.ConfigVersion),
	}
}

func (m *MemoryStore) Close() error { return nil }

func newID() string { return uuid.NewString() }

// --- Environments ---

func (m *MemoryStore) CreateEnvironment(ctx context.Context, name string) (model.Environment, error) {
	if name == "" {
		return model.Environment{}, model.NewValidationError("environment name must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.environments {
		if e.Name == name {
			return model.Environment{}, model.NewConflictError("environment name already exists")
		}
	}

	now := time.Now().UTC()
	env := model.Environment{ID: newID(), Name: name, CreatedAt: now, UpdatedAt: now}
	m.environments[env.ID] = env
	return env, nil
}

func (m *MemoryStore) GetEnvironment(ctx context.Context, id string) (model.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	env, ok := m.environments[id]
	if !ok {
		return model.Environment{}, model.NewNotFoundError("environment not found")
	}
	return env, nil
}

func (m *MemoryStore) ListEnvironments(ctx context.Context) ([]model.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Environment, 0, len(m.environments))
	for _, e := range m.environments {
		out = append(out, e)
	}
	sortEnvironments(out)
	return out, nil
}

func (m *MemoryStore) DeleteEnvironment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.environments[id]; !ok {
		return model.NewNotFoundError("environment not found")
	}
	delete(m.environments, id)
	return nil
}

// --- Audiences ---

func (m *MemoryStore) CreateAudience(ctx context.Context, envID, name string, rules []model.TargetingRule) (model.Audience, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.environments[envID]; !ok {
		return model.Audience{}, model.NewNotFoundError("environment not found")
	}
	if name == "" {
		return model.Audience{}, model.NewValidationError("audience name must not be empty")
	}
	now := time.Now().UTC()
	a := model.Audience{ID: newID(), Name: name, EnvironmentID: envID, Rules: rules, CreatedAt: now, UpdatedAt: now}
	m.audiences[a.ID] = a
	return a, nil
}

func (m *MemoryStore) GetAudience(ctx context.Context, id string) (model.Audience, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.audiences[id]
	if !ok {
		return model.Audience{}, model.NewNotFoundError("audience not found")
	}
	return a, nil
}

func (m *MemoryStore) ListAudiences(ctx context.Context, envID string, page, pageSize int) (Page[model.Audience], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []model.Audience
	for _, a := range m.audiences {
		if a.EnvironmentID == envID {
			all = append(all, a)
		}
	}
	sortAudiences(all)
	return paginateAudiences(all, page, pageSize), nil
}

func (m *MemoryStore) UpdateAudience(ctx context.Context, id, name string, rules []model.TargetingRule) (model.Audience, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.audiences[id]
	if !ok {
		return model.Audience{}, model.NewNotFoundError("audience not found")
	}
	if name != "" {
		a.Name = name
	}
	a.Rules = rules
	a.UpdatedAt = time.Now().UTC()
	m.audiences[id] = a
	return a, nil
}

// DeleteAudience detaches the audience from any experiment that
// references it (audienceId -> nil, mirroring the schema's ON DELETE SET
// NULL) before deleting it, rather than rejecting the delete - a RUNNING
// experiment losing its audience is exactly the case the caller's
// implicit-republish hook exists to handle.
func (m *MemoryStore) DeleteAudience(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.audiences[id]; !ok {
		return model.NewNotFoundError("audience not found")
	}
	for expID, exp := range m.experiments {
		if exp.AudienceID != nil && *exp.AudienceID == id {
			exp.AudienceID = nil
			exp.UpdatedAt = time.Now().UTC()
			m.experiments[expID] = exp
		}
	}
	delete(m.audiences, id)
	return nil
}

// --- Experiments ---

func (m *MemoryStore) CreateExperiment(ctx context.Context, envID, key, name, description string, audienceID *string, targetingRules []model.TargetingRule) (model.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.environments[envID]; !ok {
		return model.Experiment{}, model.NewNotFoundError("environment not found")
	}
	if key == "" {
		return model.Experiment{}, model.NewValidationError("experiment key must not be empty")
	}
	for _, e := range m.experiments {
		if e.EnvironmentID == envID && e.Key == key {
			return model.Experiment{}, model.NewConflictError("experiment key already exists in this environment")
		}
	}
	if audienceID != nil {
		aud, ok := m.audiences[*audienceID]
		if !ok {
			return model.Experiment{}, model.NewNotFoundError("audience not found")
		}
		if aud.EnvironmentID != envID {
			return model.Experiment{}, model.NewCrossEnvironmentError("audience belongs to a different environment")
		}
	}

	now := time.Now().UTC()
	exp := model.Experiment{
		ID:             newID(),
		Key:            key,
		Name:           name,
		Description:    description,
		Salt:           newID(),
		Status:         model.StatusDraft,
		EnvironmentID:  envID,
		AudienceID:     audienceID,
		TargetingRules: targetingRules,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.experiments[exp.ID] = exp
	return exp, nil
}

func (m *MemoryStore) GetExperiment(ctx context.Context, id string) (model.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp, ok := m.experiments[id]
	if !ok {
		return model.Experiment{}, model.NewNotFoundError("experiment not found")
	}
	return exp, nil
}

func (m *MemoryStore) ListExperiments(ctx context.Context, filter ExperimentFilter) (Page[model.Experiment], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []model.Experiment
	for _, e := range m.experiments {
		if e.EnvironmentID != filter.EnvironmentID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		all = append(all, e)
	}
	sortExperiments(all)
	return paginateExperiments(all, filter.Page, filter.PageSize), nil
}

func (m *MemoryStore) UpdateExperiment(ctx context.Context, id, name, description string, audienceID *string, targetingRules []model.TargetingRule) (model.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[id]
	if !ok {
		return model.Experiment{}, model.NewNotFoundError("experiment not found")
	}
	if audienceID != nil {
		aud, ok := m.audiences[*audienceID]
		if !ok {
			return model.Experiment{}, model.NewNotFoundError("audience not found")
		}
		if aud.EnvironmentID != exp.EnvironmentID {
			return model.Experiment{}, model.NewCrossEnvironmentError("audience belongs to a different environment")
		}
	}
	if name != "" {
		exp.Name = name
	}
	exp.Description = description
	exp.AudienceID = audienceID
	exp.TargetingRules = targetingRules
	exp.UpdatedAt = time.Now().UTC()
	m.experiments[id] = exp
	return exp, nil
}

func (m *MemoryStore) UpdateExperimentStatus(ctx context.Context, id string, to model.Status) (model.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[id]
	if !ok {
		return model.Experiment{}, model.NewNotFoundError("experiment not found")
	}
	if !model.CanTransition(exp.Status, to) {
		return model.Experiment{}, model.NewIllegalTransitionError("illegal status transition from " + string(exp.Status) + " to " + string(to))
	}
	exp.Status = to
	exp.UpdatedAt = time.Now().UTC()
	m.experiments[id] = exp
	return exp, nil
}

func (m *MemoryStore) DeleteExperiment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[id]; !ok {
		return model.NewNotFoundError("experiment not found")
	}
	delete(m.experiments, id)
	return nil
}

func (m *MemoryStore) ReplaceVariants(ctx context.Context, experimentID string, variants []VariantInput) (model.Experiment, error) {
	if err := validateVariantInputs(variants); err != nil {
		return model.Experiment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[experimentID]
	if !ok {
		return model.Experiment{}, model.NewNotFoundError("experiment not found")
	}

	newKeys := make(map[string]bool, len(variants))
	for _, v := range variants {
		newKeys[v.Key] = true
	}
	for _, a := range exp.Allocations {
		variant := findVariantByID(exp.Variants, a.VariantID)
		if variant != nil && !newKeys[variant.Key] {
			return model.Experiment{}, model.NewConflictError("cannot remove variant referenced by an existing allocation")
		}
	}

	out := make([]model.Variant, 0, len(variants))
	for _, v := range variants {
		id := variantIDForKey(exp.Variants, v.Key)
		if id == "" {
			id = newID()
		}
		out = append(out, model.Variant{ID: id, Key: v.Key, Name: v.Name, Payload: v.Payload, ExperimentID: experimentID})
	}
	exp.Variants = out
	exp.UpdatedAt = time.Now().UTC()
	m.experiments[experimentID] = exp
	return exp, nil
}

func (m *MemoryStore) ReplaceAllocations(ctx context.Context, experimentID string, allocations []AllocationInput) (model.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[experimentID]
	if !ok {
		return model.Experiment{}, model.NewNotFoundError("experiment not found")
	}

	variantKeys := make(map[string]bool, len(exp.Variants))
	for _, v := range exp.Variants {
		variantKeys[v.Key] = true
	}
	if err := validateAllocationInputs(allocations, variantKeys); err != nil {
		return model.Experiment{}, err
	}

	out := make([]model.Allocation, 0, len(allocations))
	for _, a := range allocations {
		variantID := variantIDForKey(exp.Variants, a.VariantKey)
		out = append(out, model.Allocation{
			ID:           newID(),
			VariantID:    variantID,
			RangeStart:   a.RangeStart,
			RangeEnd:     a.RangeEnd,
			ExperimentID: experimentID,
		})
	}
	exp.Allocations = out
	exp.UpdatedAt = time.Now().UTC()
	m.experiments[experimentID] = exp
	return exp, nil
}

func (m *MemoryStore) ListRunningExperiments(ctx context.Context, envID string) ([]model.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Experiment
	for _, e := range m.experiments {
		if e.EnvironmentID == envID && e.Status == model.StatusRunning {
			out = append(out, e)
		}
	}
	sortExperiments(out)
	return out, nil
}

func (m *MemoryStore) RecordConfigVersion(ctx context.Context, envID string, snapshot []byte) (model.ConfigVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.environments[envID]; !ok {
		return model.ConfigVersion{}, model.NewNotFoundError("environment not found")
	}
	next := 1
	if existing := m.versions[envID]; len(existing) > 0 {
		next = existing[len(existing)-1].Version + 1
	}
	cv := model.ConfigVersion{ID: newID(), EnvironmentID: envID, Version: next, Snapshot: snapshot, CreatedAt: time.Now().UTC()}
	m.versions[envID] = append(m.versions[envID], cv)
	return cv, nil
}

func (m *MemoryStore) GetLatestConfigVersion(ctx context.Context, envID string) (model.ConfigVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.versions[envID]
	if len(versions) == 0 {
		return model.ConfigVersion{}, model.NewNotFoundError("no config version published for this environment")
	}
	return versions[len(versions)-1], nil
}

func findVariantByID(variants []model.Variant, id string) *model.Variant {
	for i := range variants {
		if variants[i].ID == id {
			return &variants[i]
		}
	}
	return nil
}

func variantIDForKey(variants []model.Variant, key string) string {
	for _, v := range variants {
		if v.Key == key {
			return v.ID
		}
	}
	return ""
}
