// Package testutil provides shared HTTP test helpers for the control plane
// and decision API test suites.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flagforge/flagforge/internal/controlplane"
	"github.com/flagforge/flagforge/internal/objectstore"
	"github.com/flagforge/flagforge/internal/publish"
	"github.com/flagforge/flagforge/internal/store"
)

// NewTestServer wires an in-memory store and publisher into a
// *controlplane.Server ready to route test requests against.
func NewTestServer(t *testing.T, adminKey string) (*controlplane.Server, *store.MemoryStore, *publish.Publisher) {
	t.Helper()
	memStore := store.NewMemoryStore()
	objStore := objectstore.NewMemoryStore()
	pub := publish.NewPublisher(memStore, objStore)
	server := &controlplane.Server{Store: memStore, Publisher: pub, AdminKey: adminKey}
	return server, memStore, pub
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
