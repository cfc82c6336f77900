package publish

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/objectstore"
	"github.com/flagforge/flagforge/internal/store"
)

func setupRunningExperiment(t *testing.T, s store.Store, envID string) model.Experiment {
	t.Helper()
	ctx := context.Background()
	exp, err := s.CreateExperiment(ctx, envID, "exp-A", "Exp A", "", nil, nil)
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}
	exp, err = s.ReplaceVariants(ctx, exp.ID, []store.VariantInput{
		{Key: "control", Name: "Control", Payload: map[string]any{"color": "blue"}},
		{Key: "treatment", Name: "Treatment", Payload: map[string]any{"color": "green"}},
	})
	if err != nil {
		t.Fatalf("ReplaceVariants: %v", err)
	}
	exp, err = s.ReplaceAllocations(ctx, exp.ID, []store.AllocationInput{
		{VariantKey: "control", RangeStart: 0, RangeEnd: 4999},
		{VariantKey: "treatment", RangeStart: 5000, RangeEnd: 9999},
	})
	if err != nil {
		t.Fatalf("ReplaceAllocations: %v", err)
	}
	exp, err = s.UpdateExperimentStatus(ctx, exp.ID, model.StatusRunning)
	if err != nil {
		t.Fatalf("UpdateExperimentStatus: %v", err)
	}
	return exp
}

func TestPublisher_CompilesAndWritesAllThreeKeys(t *testing.T) {
	s := store.NewMemoryStore()
	os := objectstore.NewMemoryStore()
	ctx := context.Background()
	env, err := s.CreateEnvironment(ctx, "test")
	if err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}
	setupRunningExperiment(t, s, env.ID)

	p := NewPublisher(s, os)
	snapshot, err := p.Publish(ctx, env.ID)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if snapshot.Version != 1 {
		t.Errorf("version = %d, want 1", snapshot.Version)
	}

	versionedBody, err := os.Get(ctx, versionedSnapshotKey("test", 1))
	if err != nil {
		t.Fatalf("expected versioned snapshot to exist: %v", err)
	}
	latestBody, err := os.Get(ctx, latestSnapshotKey("test"))
	if err != nil {
		t.Fatalf("expected latest.json to exist: %v", err)
	}
	indexBody, err := os.Get(ctx, versionIndexKey("test"))
	if err != nil {
		t.Fatalf("expected version.json to exist: %v", err)
	}

	var idx model.VersionIndex
	if err := json.Unmarshal(indexBody, &idx); err != nil {
		t.Fatalf("version.json not valid JSON: %v", err)
	}
	if idx.Version != 1 {
		t.Errorf("version.json version = %d, want 1", idx.Version)
	}

	var snap model.ConfigSnapshot
	if err := json.Unmarshal(latestBody, &snap); err != nil {
		t.Fatalf("latest.json not valid JSON: %v", err)
	}
	if snap.Version != 1 || len(snap.Experiments) != 1 {
		t.Errorf("unexpected snapshot contents: %+v", snap)
	}
	if string(versionedBody) != string(latestBody) {
		t.Error("versioned snapshot and latest.json should have identical bodies")
	}
}

func TestPublisher_OnlyRunningExperimentsAreIncluded(t *testing.T) {
	s := store.NewMemoryStore()
	os := objectstore.NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "test")
	setupRunningExperiment(t, s, env.ID)
	_, err := s.CreateExperiment(ctx, env.ID, "draft-exp", "Draft", "", nil, nil)
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}

	p := NewPublisher(s, os)
	if _, err := p.Publish(ctx, env.ID); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	body, _ := os.Get(ctx, latestSnapshotKey("test"))
	var snap model.ConfigSnapshot
	json.Unmarshal(body, &snap)
	if len(snap.Experiments) != 1 {
		t.Errorf("expected only the RUNNING experiment, got %d experiments", len(snap.Experiments))
	}
}

func TestPublisher_MonotonicVersionsAcrossPublishes(t *testing.T) {
	s := store.NewMemoryStore()
	os := objectstore.NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "test")
	setupRunningExperiment(t, s, env.ID)

	p := NewPublisher(s, os)
	snap1, err := p.Publish(ctx, env.ID)
	if err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	snap2, err := p.Publish(ctx, env.ID)
	if err != nil {
		t.Fatalf("second publish failed: %v", err)
	}
	v1, v2 := snap1.Version, snap2.Version
	if v2 <= v1 {
		t.Errorf("expected strictly increasing versions, got %d then %d", v1, v2)
	}

	if _, err := os.Get(ctx, versionedSnapshotKey("test", v1)); err != nil {
		t.Error("version 1 snapshot must remain readable after a later publish (immutability)")
	}
}

func TestPublisher_AudienceRulesMaterializedInline(t *testing.T) {
	s := store.NewMemoryStore()
	os := objectstore.NewMemoryStore()
	ctx := context.Background()
	env, _ := s.CreateEnvironment(ctx, "test")

	rules := []model.TargetingRule{{Conditions: []model.TargetingCondition{
		{Attribute: "country", Operator: model.OpEq, Value: "US"},
	}}}
	aud, err := s.CreateAudience(ctx, env.ID, "us-only", rules)
	if err != nil {
		t.Fatalf("CreateAudience: %v", err)
	}

	exp, err := s.CreateExperiment(ctx, env.ID, "exp-aud", "Exp", "", &aud.ID, nil)
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}
	exp, _ = s.ReplaceVariants(ctx, exp.ID, []store.VariantInput{{Key: "on", Name: "On"}})
	s.ReplaceAllocations(ctx, exp.ID, []store.AllocationInput{{VariantKey: "on", RangeStart: 0, RangeEnd: 9999}})
	s.UpdateExperimentStatus(ctx, exp.ID, model.StatusRunning)

	p := NewPublisher(s, os)
	if _, err := p.Publish(ctx, env.ID); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	body, _ := os.Get(ctx, latestSnapshotKey("test"))
	var snap model.ConfigSnapshot
	json.Unmarshal(body, &snap)
	if len(snap.Experiments) != 1 || len(snap.Experiments[0].AudienceRules) != 1 {
		t.Fatalf("expected audience rules to be materialized inline, got %+v", snap.Experiments)
	}
}
