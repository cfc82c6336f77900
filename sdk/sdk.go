// Package sdk is the in-process embeddable client: the same
// poll-and-evaluate pipeline the decision fleet runs, generalized from a
// flag CRUD client (internal/client) into a read-only client that fetches
// snapshots directly from the object store and evaluates assignments
// in-process, with no network round trip per decision.
package sdk

import (
	"context"
	"time"

	"github.com/flagforge/flagforge/internal/assign"
	"github.com/flagforge/flagforge/internal/configstore"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/objectstore"
	"github.com/flagforge/flagforge/internal/targeting"
)

// Config configures a Client. ObjectStore selects the backend to poll;
// Environments is the initial poll set (more are added lazily by Decide
// calls for environments not listed here). PollInterval is not read by New
// or Start; the poll interval is the argument to Start (default 5s).
type Config struct {
	ObjectStore  objectstore.Config
	Environments []string
	PollInterval time.Duration
	FetchTimeout time.Duration
}

const (
	defaultPollInterval = 5 * time.Second
	defaultFetchTimeout = 3 * time.Second
)

// Client is an embeddable handle on one or more environments' compiled
// config, polled in the background and evaluated in-process.
type Client struct {
	configs *configstore.Store
	cancel  context.CancelFunc
}

// New builds a Client and registers its initial environment set. It does
// not start polling; call Start for that.
func New(cfg Config) (*Client, error) {
	objClient, err := objectstore.NewClient(cfg.ObjectStore)
	if err != nil {
		return nil, err
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	configs := configstore.New(objClient, fetchTimeout)
	for _, env := range cfg.Environments {
		configs.Register(env)
	}

	return &Client{configs: configs}, nil
}

// Start launches the background poll loop at the configured interval
// (default 5s). The loop stops when ctx is cancelled or Close is called.
func (c *Client) Start(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.configs.RunPollLoop(loopCtx, pollInterval)
}

// Close stops the background poll loop, if running. Safe to call even if
// Start was never called.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Decide evaluates every running experiment in env for userKey against
// attrs and returns the assignments produced, exactly like the decision
// fleet's /decide endpoint but without the HTTP hop. An environment never
// seen before is lazily registered with one synchronous fetch, matching
// the decision fleet's own lazy-registration rule.
func (c *Client) Decide(ctx context.Context, env, userKey string, attrs map[string]any) ([]assign.Assignment, error) {
	if err := c.configs.EnsureRegistered(ctx, env); err != nil {
		return nil, model.NewConfigUnavailableError("no config available for environment " + env)
	}
	snap, ok := c.configs.Get(env)
	if !ok {
		return nil, model.NewConfigUnavailableError("no config available for environment " + env)
	}
	return assign.Assign(snap.Experiments, userKey, targeting.Context(attrs)), nil
}

// ConfigVersion returns the currently installed config version for env,
// or 0 with ok=false if no snapshot has ever been installed.
func (c *Client) ConfigVersion(env string) (version int, ok bool) {
	snap, ok := c.configs.Get(env)
	if !ok {
		return 0, false
	}
	return snap.Version, true
}
