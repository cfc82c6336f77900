package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// queueSize is the buffer size for the event queue.
	queueSize = 1000

	// maxResponseBodySize limits how much of the response body we read (1KB).
	maxResponseBodySize = 1024

	defaultMaxRetries     = 3
	defaultTimeoutSeconds = 10
)

// Dispatcher delivers events to a static list of subscribed endpoints.
type Dispatcher struct {
	subscriptions []Subscription
	client        *http.Client
	queue         chan Event
	done          chan struct{}
	closed        int32 // atomic flag to prevent double-close
}

// NewDispatcher creates a dispatcher for the given subscriptions and
// starts its background worker.
func NewDispatcher(subscriptions []Subscription) *Dispatcher {
	for i := range subscriptions {
		if subscriptions[i].MaxRetries <= 0 {
			subscriptions[i].MaxRetries = defaultMaxRetries
		}
		if subscriptions[i].TimeoutSeconds <= 0 {
			subscriptions[i].TimeoutSeconds = defaultTimeoutSeconds
		}
	}
	d := &Dispatcher{
		subscriptions: subscriptions,
		client:        &http.Client{},
		queue:         make(chan Event, queueSize),
		done:          make(chan struct{}),
	}
	go d.worker()
	return d
}

// Close gracefully shuts down the dispatcher. It closes the event queue
// and waits for all pending deliveries to complete.
//
// Close is safe to call multiple times - subsequent calls are no-ops.
func (d *Dispatcher) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil
	}
	close(d.queue)
	<-d.done
	return nil
}

// Dispatch queues an event for webhook delivery. This is non-blocking and
// will not slow down the caller.
func (d *Dispatcher) Dispatch(event Event) {
	select {
	case d.queue <- event:
	default:
		log.Printf("[webhook] queue full (size=%d), dropping event: type=%s resource=%s/%s env=%s",
			queueSize, event.Type, event.Resource.Type, event.Resource.Key, event.Environment)
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		for _, sub := range d.matchingSubscriptions(event) {
			d.deliverWithRetry(context.Background(), sub, event)
		}
	}
}

func (d *Dispatcher) matchingSubscriptions(event Event) []Subscription {
	var matching []Subscription
	for _, sub := range d.subscriptions {
		if !stringSliceContainsOrEmpty(sub.Events, event.Type) {
			continue
		}
		if !stringSliceContainsOrEmpty(sub.Environments, event.Environment) {
			continue
		}
		matching = append(matching, sub)
	}
	return matching
}

func stringSliceContainsOrEmpty(haystack []string, needle string) bool {
	if len(haystack) == 0 {
		return true
	}
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// deliverWithRetry attempts to deliver an event to a subscription with
// exponential backoff between retries.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, sub Subscription, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[webhook] failed to marshal event payload: url=%s event_type=%s error=%v", sub.URL, event.Type, err)
		return
	}

	signature := ComputeHMAC(payload, sub.Secret)
	deliveryID := uuid.New().String()

	for attempt := 0; attempt <= sub.MaxRetries; attempt++ {
		start := time.Now()

		req, err := http.NewRequest(http.MethodPost, sub.URL, bytes.NewReader(payload))
		if err != nil {
			log.Printf("[webhook] failed to create request: url=%s error=%v", sub.URL, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Flagforge-Signature", signature)
		req.Header.Set("X-Flagforge-Event", event.Type)
		req.Header.Set("X-Flagforge-Delivery", deliveryID)

		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(sub.TimeoutSeconds)*time.Second)
		resp, err := d.client.Do(req.WithContext(reqCtx))
		duration := time.Since(start)

		var statusCode int
		if err == nil {
			statusCode = resp.StatusCode
			io.CopyN(io.Discard, resp.Body, maxResponseBodySize)
			resp.Body.Close()
		}
		cancel()

		success := err == nil && statusCode >= 200 && statusCode < 300
		if success {
			log.Printf("[webhook] delivery succeeded: url=%s status=%d duration=%s attempt=%d/%d",
				sub.URL, statusCode, duration, attempt+1, sub.MaxRetries+1)
			return
		}

		if attempt < sub.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			log.Printf("[webhook] delivery failed: url=%s status=%d error=%v attempt=%d/%d retry_in=%s",
				sub.URL, statusCode, err, attempt+1, sub.MaxRetries+1, backoff)
			time.Sleep(backoff)
		} else {
			log.Printf("[webhook] delivery failed permanently: url=%s status=%d error=%v attempts=%d/%d",
				sub.URL, statusCode, err, attempt+1, sub.MaxRetries+1)
		}
	}
}
