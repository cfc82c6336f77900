package testutil

import (
	"net/http"
	"testing"
)

func TestNewTestServer(t *testing.T) {
	server, memStore, pub := NewTestServer(t, "test-key")
	if server == nil {
		t.Fatal("expected non-nil server")
	}
	if memStore == nil {
		t.Fatal("expected non-nil store")
	}
	if pub == nil {
		t.Fatal("expected non-nil publisher")
	}
}

func TestHTTPRequest_Do(t *testing.T) {
	server, _, _ := NewTestServer(t, "")
	req := &HTTPRequest{Method: http.MethodGet, Path: "/healthz"}
	rr := req.Do(t, server.Router())
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestHTTPRequest_DoWithBody(t *testing.T) {
	server, _, _ := NewTestServer(t, "")
	req := &HTTPRequest{
		Method: http.MethodPost,
		Path:   "/environments/",
		Body:   `{"name":"production"}`,
	}
	rr := req.Do(t, server.Router())
	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHTTPRequest_HeaderOverride(t *testing.T) {
	server, _, _ := NewTestServer(t, "secret")
	req := &HTTPRequest{
		Method:  http.MethodGet,
		Path:    "/environments/",
		Headers: map[string]string{"Authorization": "Bearer wrong"},
	}
	rr := req.Do(t, server.Router())
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a wrong admin key", rr.Code)
	}
}
