package store

import (
	"context"
	"testing"
)

func TestNewStore_Memory(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, "memory", "")
	if err != nil {
		t.Fatalf("NewStore('memory') failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected non-nil store")
	}

	env, err := s.CreateEnvironment(ctx, "test")
	if err != nil {
		t.Fatalf("CreateEnvironment failed: %v", err)
	}
	got, err := s.GetEnvironment(ctx, env.ID)
	if err != nil {
		t.Fatalf("GetEnvironment failed: %v", err)
	}
	if got.Name != "test" {
		t.Errorf("name = %q, want test", got.Name)
	}
	s.Close()
}

func TestNewStore_UnsupportedType(t *testing.T) {
	ctx := context.Background()
	_, err := NewStore(ctx, "invalid-type", "")
	if err == nil {
		t.Fatal("expected error for unsupported store type")
	}
}

func TestNewStore_PostgresRequiresDSN(t *testing.T) {
	ctx := context.Background()
	_, err := NewStore(ctx, "postgres", "")
	if err == nil {
		t.Fatal("expected error for empty DSN with postgres store")
	}
}

func TestNewStore_CaseSensitivity(t *testing.T) {
	ctx := context.Background()
	if _, err := NewStore(ctx, "Memory", ""); err == nil {
		t.Error("expected error for 'Memory' (capital M)")
	}
	s, err := NewStore(ctx, "memory", "")
	if err != nil {
		t.Fatalf("NewStore('memory') should work: %v", err)
	}
	s.Close()
}
