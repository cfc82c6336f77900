// Package client is an HTTP client for the control-plane API, used by
// flagforgectl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/flagforge/flagforge/internal/model"
)

// Client is an HTTP client for the control-plane API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new control-plane API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("control plane returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) CreateEnvironment(ctx context.Context, name string) (model.Environment, error) {
	var env model.Environment
	err := c.do(ctx, http.MethodPost, "/environments/", nil, map[string]string{"name": name}, &env)
	return env, err
}

func (c *Client) ListEnvironments(ctx context.Context) ([]model.Environment, error) {
	var page struct {
		Data []model.Environment `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/environments/", nil, nil, &page)
	return page.Data, err
}

func (c *Client) GetEnvironment(ctx context.Context, id string) (model.Environment, error) {
	var env model.Environment
	err := c.do(ctx, http.MethodGet, "/environments/"+id, nil, nil, &env)
	return env, err
}

func (c *Client) DeleteEnvironment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/environments/"+id, nil, nil, nil)
}

func (c *Client) CreateExperiment(ctx context.Context, envID, key, name, description string, audienceID *string, rules []model.TargetingRule) (model.Experiment, error) {
	var exp model.Experiment
	body := map[string]any{
		"environmentId":  envID,
		"key":            key,
		"name":           name,
		"description":    description,
		"audienceId":     audienceID,
		"targetingRules": rules,
	}
	err := c.do(ctx, http.MethodPost, "/experiments/", nil, body, &exp)
	return exp, err
}

func (c *Client) ListExperiments(ctx context.Context, envID string, status string) ([]model.Experiment, error) {
	q := url.Values{}
	if envID != "" {
		q.Set("environmentId", envID)
	}
	if status != "" {
		q.Set("status", status)
	}
	var page struct {
		Data []model.Experiment `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/experiments/", q, nil, &page)
	return page.Data, err
}

func (c *Client) GetExperiment(ctx context.Context, id string) (model.Experiment, error) {
	var exp model.Experiment
	err := c.do(ctx, http.MethodGet, "/experiments/"+id, nil, nil, &exp)
	return exp, err
}

func (c *Client) UpdateExperimentStatus(ctx context.Context, id string, status model.Status) (model.Experiment, error) {
	var exp model.Experiment
	err := c.do(ctx, http.MethodPost, "/experiments/"+id+"/status", nil, map[string]string{"status": string(status)}, &exp)
	return exp, err
}

func (c *Client) DeleteExperiment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/experiments/"+id, nil, nil, nil)
}

func (c *Client) CreateAudience(ctx context.Context, envID, name string, rules []model.TargetingRule) (model.Audience, error) {
	var aud model.Audience
	body := map[string]any{
		"environmentId": envID,
		"name":          name,
		"rules":         rules,
	}
	err := c.do(ctx, http.MethodPost, "/audiences/", nil, body, &aud)
	return aud, err
}

func (c *Client) ListAudiences(ctx context.Context, envID string) ([]model.Audience, error) {
	q := url.Values{}
	if envID != "" {
		q.Set("environmentId", envID)
	}
	var page struct {
		Data []model.Audience `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/audiences/", q, nil, &page)
	return page.Data, err
}

func (c *Client) GetAudience(ctx context.Context, id string) (model.Audience, error) {
	var aud model.Audience
	err := c.do(ctx, http.MethodGet, "/audiences/"+id, nil, nil, &aud)
	return aud, err
}

// UpdateAudience leaves name unchanged when name is nil, and rules
// unchanged when rules is nil (pass an empty, non-nil slice to clear them).
func (c *Client) UpdateAudience(ctx context.Context, id string, name *string, rules []model.TargetingRule) (model.Audience, error) {
	var aud model.Audience
	body := map[string]any{
		"name":  name,
		"rules": rules,
	}
	err := c.do(ctx, http.MethodPatch, "/audiences/"+id, nil, body, &aud)
	return aud, err
}

func (c *Client) DeleteAudience(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/audiences/"+id, nil, nil, nil)
}

// CreateVariant appends one variant to an experiment's variant set.
func (c *Client) CreateVariant(ctx context.Context, experimentID, key, name string, payload map[string]any) (model.Experiment, error) {
	var exp model.Experiment
	body := map[string]any{
		"key":     key,
		"name":    name,
		"payload": payload,
	}
	err := c.do(ctx, http.MethodPost, "/experiments/"+experimentID+"/variants", nil, body, &exp)
	return exp, err
}

func (c *Client) DeleteVariant(ctx context.Context, experimentID, variantID string) (model.Experiment, error) {
	var exp model.Experiment
	err := c.do(ctx, http.MethodDelete, "/experiments/"+experimentID+"/variants/"+variantID, nil, nil, &exp)
	return exp, err
}

// AllocationInput is one range-to-variant mapping in a ReplaceAllocations call.
type AllocationInput struct {
	VariantID  string `json:"variantId"`
	RangeStart int    `json:"rangeStart"`
	RangeEnd   int    `json:"rangeEnd"`
}

// ReplaceAllocations replaces an experiment's entire allocation set in one
// call; an implicit publish follows if the experiment is RUNNING.
func (c *Client) ReplaceAllocations(ctx context.Context, experimentID string, allocations []AllocationInput) (model.Experiment, error) {
	var exp model.Experiment
	body := map[string]any{"allocations": allocations}
	err := c.do(ctx, http.MethodPut, "/experiments/"+experimentID+"/allocations", nil, body, &exp)
	return exp, err
}

// Publish triggers an explicit config compile and publish for the
// experiment's environment and returns the compiled snapshot.
func (c *Client) Publish(ctx context.Context, experimentID string) (model.ConfigSnapshot, error) {
	var snap model.ConfigSnapshot
	err := c.do(ctx, http.MethodPost, "/experiments/"+experimentID+"/publish", nil, nil, &snap)
	return snap, err
}
