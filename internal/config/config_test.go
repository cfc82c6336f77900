package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

var allConfigKeys = []string{
	"APP_ENV", "CONTROL_PLANE_HTTP_ADDR", "METRICS_ADDR", "DATABASE_URL",
	"STORE_TYPE", "ADMIN_API_KEY", "DECISION_HTTP_ADDR", "POLL_INTERVAL",
	"DECISION_ENVIRONMENTS", "OBJECT_STORE_ENDPOINT", "OBJECT_STORE_BUCKET",
	"OBJECT_STORE_ACCESS_KEY", "OBJECT_STORE_SECRET_KEY", "OBJECT_STORE_REGION",
	"OBJECT_STORE_USE_SSL",
}

func TestLoadControlPlaneConfig_Defaults(t *testing.T) {
	clearEnv(t, allConfigKeys...)

	cfg, err := LoadControlPlaneConfig()
	if err != nil {
		t.Fatalf("LoadControlPlaneConfig() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want dev", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.StoreType != "postgres" {
		t.Errorf("StoreType = %q, want postgres", cfg.StoreType)
	}
	if cfg.AdminAPIKey != defaultAdminAPIKey {
		t.Errorf("AdminAPIKey = %q, want %q", cfg.AdminAPIKey, defaultAdminAPIKey)
	}
	if cfg.ObjectStore.Bucket != "flagforge-configs" {
		t.Errorf("ObjectStore.Bucket = %q, want flagforge-configs", cfg.ObjectStore.Bucket)
	}
}

func TestLoadControlPlaneConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t, allConfigKeys...)
	os.Setenv("APP_ENV", "staging")
	os.Setenv("CONTROL_PLANE_HTTP_ADDR", ":9999")
	os.Setenv("ADMIN_API_KEY", "custom-key")
	os.Setenv("STORE_TYPE", "memory")
	os.Setenv("OBJECT_STORE_ENDPOINT", "objects.internal:443")
	os.Setenv("OBJECT_STORE_USE_SSL", "true")

	cfg, err := LoadControlPlaneConfig()
	if err != nil {
		t.Fatalf("LoadControlPlaneConfig() failed: %v", err)
	}

	if cfg.AppEnv != "staging" {
		t.Errorf("AppEnv = %q, want staging", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want :9999", cfg.HTTPAddr)
	}
	if cfg.AdminAPIKey != "custom-key" {
		t.Errorf("AdminAPIKey = %q, want custom-key", cfg.AdminAPIKey)
	}
	if cfg.StoreType != "memory" {
		t.Errorf("StoreType = %q, want memory", cfg.StoreType)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Error("ObjectStore.UseSSL = false, want true")
	}
}

func TestLoadControlPlaneConfig_RejectsUnsupportedStoreType(t *testing.T) {
	clearEnv(t, allConfigKeys...)
	os.Setenv("STORE_TYPE", "sqlite")

	if _, err := LoadControlPlaneConfig(); err == nil {
		t.Fatal("expected error for unsupported STORE_TYPE, got nil")
	}
}

func TestLoadControlPlaneConfig_RequiresDatabaseURLForPostgres(t *testing.T) {
	clearEnv(t, allConfigKeys...)
	os.Setenv("STORE_TYPE", "postgres")
	os.Setenv("DATABASE_URL", "")

	if _, err := LoadControlPlaneConfig(); err == nil {
		t.Fatal("expected error for empty DATABASE_URL with STORE_TYPE=postgres, got nil")
	}
}

func TestLoadDecisionConfig_Defaults(t *testing.T) {
	clearEnv(t, allConfigKeys...)

	cfg, err := LoadDecisionConfig()
	if err != nil {
		t.Fatalf("LoadDecisionConfig() failed: %v", err)
	}

	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q, want :8081", cfg.HTTPAddr)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if len(cfg.Environments) != 0 {
		t.Errorf("Environments = %v, want empty", cfg.Environments)
	}
}

func TestLoadDecisionConfig_ParsesEnvironmentList(t *testing.T) {
	clearEnv(t, allConfigKeys...)
	os.Setenv("DECISION_ENVIRONMENTS", "production, staging,dev")

	cfg, err := LoadDecisionConfig()
	if err != nil {
		t.Fatalf("LoadDecisionConfig() failed: %v", err)
	}

	want := []string{"production", "staging", "dev"}
	if len(cfg.Environments) != len(want) {
		t.Fatalf("Environments = %v, want %v", cfg.Environments, want)
	}
	for i, env := range want {
		if cfg.Environments[i] != env {
			t.Errorf("Environments[%d] = %q, want %q", i, cfg.Environments[i], env)
		}
	}
}

func TestLoadDecisionConfig_RejectsInvalidPollInterval(t *testing.T) {
	clearEnv(t, allConfigKeys...)
	os.Setenv("POLL_INTERVAL", "not-a-duration")

	if _, err := LoadDecisionConfig(); err == nil {
		t.Fatal("expected error for invalid POLL_INTERVAL, got nil")
	}
}

func TestObjectStoreConfig_ClientConfig(t *testing.T) {
	cfg := ObjectStoreConfig{
		Endpoint:  "objects.internal:9000",
		Bucket:    "flagforge-configs",
		AccessKey: "ak",
		SecretKey: "sk",
		UseSSL:    true,
	}
	cc := cfg.ClientConfig()
	if cc.BaseURL != "https://objects.internal:9000/flagforge-configs" {
		t.Errorf("BaseURL = %q", cc.BaseURL)
	}
	if cc.AuthToken != "ak:sk" {
		t.Errorf("AuthToken = %q, want ak:sk", cc.AuthToken)
	}
}
