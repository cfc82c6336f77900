package store

import (
	"context"
	"testing"

	"github.com/flagforge/flagforge/internal/model"
)

func TestMemoryStore_EnvironmentLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	env, err := s.CreateEnvironment(ctx, "prod")
	if err != nil {
		t.Fatalf("CreateEnvironment failed: %v", err)
	}
	if env.ID == "" {
		t.Fatal("expected non-empty environment id")
	}

	if _, err := s.CreateEnvironment(ctx, "prod"); !model.IsKind(err, model.ErrKindConflict) {
		t.Errorf("expected conflict for duplicate name, got %v", err)
	}

	if _, err := s.GetEnvironment(ctx, "missing"); !model.IsKind(err, model.ErrKindNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}

	if err := s.DeleteEnvironment(ctx, env.ID); err != nil {
		t.Fatalf("DeleteEnvironment failed: %v", err)
	}
	if _, err := s.GetEnvironment(ctx, env.ID); !model.IsKind(err, model.ErrKindNotFound) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

func TestMemoryStore_AudienceCRUD(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "prod")

	rules := []model.TargetingRule{{Conditions: []model.TargetingCondition{
		{Attribute: "country", Operator: model.OpEq, Value: "US"},
	}}}
	aud, err := s.CreateAudience(ctx, env.ID, "us-users", rules)
	if err != nil {
		t.Fatalf("CreateAudience failed: %v", err)
	}

	page, err := s.ListAudiences(ctx, env.ID, 1, 20)
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("ListAudiences = %v, %v", page, err)
	}

	updated, err := s.UpdateAudience(ctx, aud.ID, "us-users-v2", nil)
	if err != nil {
		t.Fatalf("UpdateAudience failed: %v", err)
	}
	if updated.Name != "us-users-v2" || len(updated.Rules) != 0 {
		t.Errorf("update did not apply: %+v", updated)
	}

	if err := s.DeleteAudience(ctx, aud.ID); err != nil {
		t.Fatalf("DeleteAudience failed: %v", err)
	}
}

func TestMemoryStore_AudienceDeleteDetachesReferencingExperiment(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "prod")
	aud, _ := s.CreateAudience(ctx, env.ID, "aud", nil)
	exp, err := s.CreateExperiment(ctx, env.ID, "exp-1", "Exp", "", &aud.ID, nil)
	if err != nil {
		t.Fatalf("CreateExperiment failed: %v", err)
	}

	if err := s.DeleteAudience(ctx, aud.ID); err != nil {
		t.Fatalf("expected deleting a referenced audience to succeed, got %v", err)
	}

	updated, err := s.GetExperiment(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GetExperiment failed: %v", err)
	}
	if updated.AudienceID != nil {
		t.Errorf("expected audienceId to be detached, got %v", *updated.AudienceID)
	}
}

func TestMemoryStore_ExperimentCrossEnvironmentAudienceRejected(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	envA, _ := s.CreateEnvironment(ctx, "a")
	envB, _ := s.CreateEnvironment(ctx, "b")
	audInB, _ := s.CreateAudience(ctx, envB.ID, "aud-b", nil)

	_, err := s.CreateExperiment(ctx, envA.ID, "exp-1", "Exp", "", &audInB.ID, nil)
	if !model.IsKind(err, model.ErrKindCrossEnvironment) {
		t.Errorf("expected cross-environment error, got %v", err)
	}
}

func TestMemoryStore_ExperimentKeyUniquePerEnvironment(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "prod")
	if _, err := s.CreateExperiment(ctx, env.ID, "exp-1", "Exp", "", nil, nil); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := s.CreateExperiment(ctx, env.ID, "exp-1", "Exp Dup", "", nil, nil); !model.IsKind(err, model.ErrKindConflict) {
		t.Errorf("expected conflict for duplicate key, got %v", err)
	}

	other, _ := s.CreateEnvironment(ctx, "staging")
	if _, err := s.CreateExperiment(ctx, other.ID, "exp-1", "Exp", "", nil, nil); err != nil {
		t.Errorf("same key in a different environment should be allowed: %v", err)
	}
}

func TestMemoryStore_StatusTransitions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "prod")
	exp, _ := s.CreateExperiment(ctx, env.ID, "exp-1", "Exp", "", nil, nil)

	if _, err := s.UpdateExperimentStatus(ctx, exp.ID, model.StatusPaused); !model.IsKind(err, model.ErrKindIllegalTransition) {
		t.Errorf("DRAFT -> PAUSED should be illegal, got %v", err)
	}

	running, err := s.UpdateExperimentStatus(ctx, exp.ID, model.StatusRunning)
	if err != nil {
		t.Fatalf("DRAFT -> RUNNING should be legal: %v", err)
	}
	if running.Status != model.StatusRunning {
		t.Errorf("status = %s, want RUNNING", running.Status)
	}

	archived, err := s.UpdateExperimentStatus(ctx, exp.ID, model.StatusArchived)
	if err != nil {
		t.Fatalf("RUNNING -> ARCHIVED should be legal: %v", err)
	}
	if _, err := s.UpdateExperimentStatus(ctx, archived.ID, model.StatusRunning); !model.IsKind(err, model.ErrKindIllegalTransition) {
		t.Errorf("ARCHIVED is terminal, expected illegal transition, got %v", err)
	}
}

func TestMemoryStore_ReplaceVariantsAndAllocations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "prod")
	exp, _ := s.CreateExperiment(ctx, env.ID, "exp-1", "Exp", "", nil, nil)

	exp, err := s.ReplaceVariants(ctx, exp.ID, []VariantInput{
		{Key: "control", Name: "Control"},
		{Key: "treatment", Name: "Treatment"},
	})
	if err != nil {
		t.Fatalf("ReplaceVariants failed: %v", err)
	}
	if len(exp.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(exp.Variants))
	}

	exp, err = s.ReplaceAllocations(ctx, exp.ID, []AllocationInput{
		{VariantKey: "control", RangeStart: 0, RangeEnd: 4999},
		{VariantKey: "treatment", RangeStart: 5000, RangeEnd: 9999},
	})
	if err != nil {
		t.Fatalf("ReplaceAllocations failed: %v", err)
	}
	if len(exp.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(exp.Allocations))
	}

	_, err = s.ReplaceAllocations(ctx, exp.ID, []AllocationInput{
		{VariantKey: "control", RangeStart: 0, RangeEnd: 5000},
		{VariantKey: "treatment", RangeStart: 4000, RangeEnd: 9999},
	})
	if !model.IsKind(err, model.ErrKindValidation) {
		t.Errorf("expected validation error for overlapping ranges, got %v", err)
	}

	_, err = s.ReplaceAllocations(ctx, exp.ID, []AllocationInput{
		{VariantKey: "unknown", RangeStart: 0, RangeEnd: 9999},
	})
	if !model.IsKind(err, model.ErrKindValidation) {
		t.Errorf("expected validation error for unknown variant key, got %v", err)
	}

	_, err = s.ReplaceVariants(ctx, exp.ID, []VariantInput{{Key: "control", Name: "Control"}})
	if !model.IsKind(err, model.ErrKindConflict) {
		t.Errorf("expected conflict removing a variant referenced by an allocation, got %v", err)
	}
}

func TestMemoryStore_ListRunningExperimentsOnlyReturnsRunning(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "prod")

	draft, _ := s.CreateExperiment(ctx, env.ID, "draft-exp", "Draft", "", nil, nil)
	running, _ := s.CreateExperiment(ctx, env.ID, "running-exp", "Running", "", nil, nil)
	s.UpdateExperimentStatus(ctx, running.ID, model.StatusRunning)

	got, err := s.ListRunningExperiments(ctx, env.ID)
	if err != nil {
		t.Fatalf("ListRunningExperiments failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != running.ID {
		t.Errorf("expected only the running experiment, got %v (draft id %s)", got, draft.ID)
	}
}

func TestMemoryStore_ConfigVersionsMonotonic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "prod")

	v1, err := s.RecordConfigVersion(ctx, env.ID, []byte(`{"version":1}`))
	if err != nil {
		t.Fatalf("RecordConfigVersion failed: %v", err)
	}
	if v1.Version != 1 {
		t.Errorf("first version = %d, want 1", v1.Version)
	}

	v2, err := s.RecordConfigVersion(ctx, env.ID, []byte(`{"version":2}`))
	if err != nil {
		t.Fatalf("RecordConfigVersion failed: %v", err)
	}
	if v2.Version != 2 {
		t.Errorf("second version = %d, want 2", v2.Version)
	}

	latest, err := s.GetLatestConfigVersion(ctx, env.ID)
	if err != nil {
		t.Fatalf("GetLatestConfigVersion failed: %v", err)
	}
	if latest.Version != 2 {
		t.Errorf("latest version = %d, want 2", latest.Version)
	}
}

func TestMemoryStore_PaginationDefaults(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "prod")
	for i := 0; i < 25; i++ {
		s.CreateAudience(ctx, env.ID, "aud", nil)
	}

	page, err := s.ListAudiences(ctx, env.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListAudiences failed: %v", err)
	}
	if len(page.Items) != defaultPageSize {
		t.Errorf("expected default page size %d, got %d", defaultPageSize, len(page.Items))
	}
	if page.Total != 25 {
		t.Errorf("total = %d, want 25", page.Total)
	}

	page2, err := s.ListAudiences(ctx, env.ID, 2, 20)
	if err != nil {
		t.Fatalf("ListAudiences page 2 failed: %v", err)
	}
	if len(page2.Items) != 5 {
		t.Errorf("expected 5 items on page 2, got %d", len(page2.Items))
	}
}
