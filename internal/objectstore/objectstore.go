// Package objectstore provides a minimal HTTP-based blob client used by the
// publisher to write compiled config snapshots and by the decision-side
// poller to read them. There is deliberately no cross-object atomicity
// and no ordering between writes: internal/publish issues its three PUTs
// concurrently.
//
// There is no object-storage client library grounded in the example
// corpus, so Client talks to a bucket-style HTTP backend (any service that
// accepts PUT/GET on a key path - a local blob gateway, an S3-compatible
// reverse proxy, etc.) using net/http directly rather than pull in an
// ungrounded SDK.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("objectstore: key not found")

// Store is the narrow interface the publisher and poller depend on,
// satisfied by *Client and by the in-memory fake used in tests.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Config is the connection configuration for the blob backend.
type Config struct {
	// BaseURL is the root the client issues PUT/GET requests under, e.g.
	// "https://blobs.internal.example.com/flagforge-configs". Keys are
	// appended as path segments.
	BaseURL   string
	AuthToken string
}

// Client is a thin PUT/GET client over a bucket-style HTTP backend.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// NewClient builds a Client bound to one backend/bucket.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("objectstore: BaseURL is required")
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		http:      &http.Client{},
	}, nil
}

// Put uploads body under key, overwriting any existing object.
func (c *Client) Put(ctx context.Context, key string, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(key), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	c.authenticate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("objectstore: put %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// Get downloads the object at key. Returns ErrNotFound if it doesn't
// exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(key), nil)
	if err != nil {
		return nil, err
	}
	c.authenticate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("objectstore: get %s: unexpected status %d", key, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) authenticate(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

func (c *Client) url(key string) string {
	return c.baseURL + "/" + key
}
