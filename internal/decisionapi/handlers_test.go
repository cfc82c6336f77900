package decisionapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flagforge/flagforge/internal/configstore"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/objectstore"
)

func seedSnapshot(t *testing.T, os *objectstore.MemoryStore, env string, snap model.ConfigSnapshot) {
	t.Helper()
	ctx := context.Background()
	body, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := os.Put(ctx, "configs/"+env+"/snapshots/latest.json", body, "application/json"); err != nil {
		t.Fatalf("put latest: %v", err)
	}
	idx, _ := json.Marshal(model.VersionIndex{Version: snap.Version})
	if err := os.Put(ctx, "configs/"+env+"/version.json", idx, "application/json"); err != nil {
		t.Fatalf("put version index: %v", err)
	}
}

func twoVariantSnapshot(version int) model.ConfigSnapshot {
	return model.ConfigSnapshot{
		Version:     version,
		Environment: "test",
		Experiments: []model.ConfigExperiment{
			{
				ID:   "exp-1",
				Key:  "exp-A",
				Salt: "exp-A-salt",
				Variants: []model.ConfigVariant{
					{ID: "v-control", Key: "control", Payload: map[string]any{"color": "blue"}},
					{ID: "v-treatment", Key: "treatment", Payload: map[string]any{"color": "green"}},
				},
				Allocations: []model.ConfigAllocation{
					{VariantID: "v-control", RangeStart: 0, RangeEnd: 4999},
					{VariantID: "v-treatment", RangeStart: 5000, RangeEnd: 9999},
				},
			},
		},
	}
}

func TestHandleDecide_ReturnsAssignmentForRegisteredEnvironment(t *testing.T) {
	os := objectstore.NewMemoryStore()
	seedSnapshot(t, os, "test", twoVariantSnapshot(1))

	srv := &Server{Configs: configstore.New(os, time.Second)}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/decide?user_key=user-1&env=test")
	if err != nil {
		t.Fatalf("GET /decide: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var decoded decideResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.ConfigVersion != 1 {
		t.Errorf("config_version = %d, want 1", decoded.ConfigVersion)
	}
	if len(decoded.Assignments) != 1 {
		t.Fatalf("expected exactly one assignment, got %d", len(decoded.Assignments))
	}
}

func TestHandleDecide_RepeatedCallsAreDeterministic(t *testing.T) {
	os := objectstore.NewMemoryStore()
	seedSnapshot(t, os, "test", twoVariantSnapshot(1))

	srv := &Server{Configs: configstore.New(os, time.Second)}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var first string
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/decide?user_key=user-42&env=test")
		if err != nil {
			t.Fatalf("GET /decide: %v", err)
		}
		var decoded decideResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		resp.Body.Close()
		if len(decoded.Assignments) != 1 {
			t.Fatalf("expected one assignment, got %d", len(decoded.Assignments))
		}
		if i == 0 {
			first = decoded.Assignments[0].VariantKey
		} else if decoded.Assignments[0].VariantKey != first {
			t.Fatalf("assignment changed across repeated calls: %q vs %q", decoded.Assignments[0].VariantKey, first)
		}
	}
}

func TestHandleDecide_MissingParamsReturns400(t *testing.T) {
	srv := &Server{Configs: configstore.New(objectstore.NewMemoryStore(), time.Second)}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/decide?user_key=user-1")
	if err != nil {
		t.Fatalf("GET /decide: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleDecide_UnknownEnvironmentReturns503(t *testing.T) {
	srv := &Server{Configs: configstore.New(objectstore.NewMemoryStore(), time.Second)}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/decide?user_key=user-1&env=nope")
	if err != nil {
		t.Fatalf("GET /decide: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHandleHealth_ReportsConfigVersions(t *testing.T) {
	os := objectstore.NewMemoryStore()
	seedSnapshot(t, os, "test", twoVariantSnapshot(3))

	store := configstore.New(os, time.Second)
	if err := store.EnsureRegistered(context.Background(), "test"); err != nil {
		t.Fatalf("EnsureRegistered: %v", err)
	}

	srv := &Server{Configs: store}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var decoded healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Status != "ok" {
		t.Errorf("status = %q, want ok", decoded.Status)
	}
	v, ok := decoded.ConfigVersions["test"]
	if !ok || v == nil || *v != 3 {
		t.Errorf("config_versions[test] = %v, want 3", decoded.ConfigVersions["test"])
	}
}
