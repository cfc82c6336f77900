// Package webhook provides event dispatching and delivery for outbound
// webhooks.
//
// Webhook Dispatch Flow:
//  1. A caller (the publisher, on a successful config publish) builds an
//     Event and calls dispatcher.Dispatch(event)
//  2. Event is queued in a buffered channel (non-blocking, async)
//  3. Background worker processes events from the queue
//  4. For each event, the worker finds subscribed webhooks (filtered by
//     event type and, optionally, environment)
//  5. Worker attempts delivery to each matching webhook with retry logic
//
// Retry Logic:
//   - Exponential backoff: 1s, 2s, 4s, 8s, etc.
//   - Max retries configured per webhook (default 3)
//   - Permanent failures are logged but don't block processing
//
// Subscriptions:
//   Webhooks are a static []Subscription list passed to NewDispatcher at
//   startup, not a CRUD resource - there is no persistence layer for
//   webhook registration, and the config loaders do not read one.
//
// Thread Safety:
//   - Dispatcher uses a goroutine worker to process events asynchronously
//   - Dispatch() is non-blocking and safe to call from any goroutine
//   - Queue has fixed size (1000); if full, events are dropped with warning
package webhook

import (
	"time"
)

// Event types that can trigger webhooks.
const (
	EventExperimentStatusChanged = "experiment.status_changed"
	EventConfigPublished         = "config.published"
)

// Event represents a webhook event that will be sent to subscribed webhooks.
type Event struct {
	Type        string    `json:"event"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Resource    Resource  `json:"resource"`
	Data        EventData `json:"data"`
}

// Resource identifies the resource that triggered the event.
type Resource struct {
	Type string `json:"type"` // e.g. "experiment", "configVersion"
	Key  string `json:"key"`
}

// EventData carries event-specific details.
type EventData struct {
	Version int    `json:"version,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Subscription is a statically configured webhook endpoint.
type Subscription struct {
	URL            string
	Secret         string
	Events         []string // event types this endpoint wants; empty means all
	Environments   []string // environment names this endpoint wants; empty means all
	MaxRetries     int
	TimeoutSeconds int
}
