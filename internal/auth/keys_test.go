package auth

import "testing"

func TestVerifyAPIKeyConstantTime(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
		want     bool
	}{
		{"equal", "admin-123", "admin-123", true},
		{"not equal", "admin-456", "admin-123", false},
		{"empty got", "", "admin-123", false},
		{"empty expected", "admin-123", "", false},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyAPIKeyConstantTime(tt.got, tt.expected); got != tt.want {
				t.Errorf("VerifyAPIKeyConstantTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		want       string
	}{
		{"with Bearer prefix", "Bearer token123", "token123"},
		{"with bearer lowercase", "bearer token456", "token456"},
		{"with extra spaces", "Bearer  token789  ", "token789"},
		{"without Bearer prefix", "token999", "token999"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBearerToken(tt.authHeader); got != tt.want {
				t.Errorf("ExtractBearerToken() = %v, want %v", got, tt.want)
			}
		})
	}
}
