// Package configstore is the decision-side mirror of internal/publish: it
// holds one atomically-swapped ConfigSnapshot pointer per environment,
// fed either by an explicit poll loop or by lazy on-demand registration,
// and enforces the monotonic-install rule that makes the object store's
// lack of cross-object atomicity safe to read from.
package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/objectstore"
	"github.com/flagforge/flagforge/internal/telemetry"
)

// entry holds one environment's current snapshot behind an atomic
// pointer, so readers never block on the poll loop's writer.
type entry struct {
	snapshot atomic.Pointer[model.ConfigSnapshot]
}

// Store is the decision fleet's in-memory view of every registered
// environment's latest known-good config. Safe for concurrent use by the
// poll loop and by request-handling goroutines.
type Store struct {
	objectStore objectstore.Store
	fetchTimeout time.Duration

	mu       sync.Mutex
	entries  map[string]*entry
}

// New creates a Store reading from objectStore, bounding each individual
// object fetch to fetchTimeout.
func New(objectStore objectstore.Store, fetchTimeout time.Duration) *Store {
	return &Store{
		objectStore:  objectStore,
		fetchTimeout: fetchTimeout,
		entries:      make(map[string]*entry),
	}
}

// Get returns the currently installed snapshot for env, or false if no
// snapshot has ever been installed (including if the environment isn't
// registered at all).
func (s *Store) Get(env string) (model.ConfigSnapshot, bool) {
	s.mu.Lock()
	e, ok := s.entries[env]
	s.mu.Unlock()
	if !ok {
		return model.ConfigSnapshot{}, false
	}
	p := e.snapshot.Load()
	if p == nil {
		return model.ConfigSnapshot{}, false
	}
	return *p, true
}

// Environments lists every environment this store knows about,
// regardless of whether a snapshot has successfully installed yet.
func (s *Store) Environments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for env := range s.entries {
		out = append(out, env)
	}
	return out
}

// Register adds env to the poll set if it isn't already known. Safe to
// call repeatedly; a no-op for an already-known environment.
func (s *Store) Register(env string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[env]; !ok {
		s.entries[env] = &entry{}
	}
}

// EnsureRegistered registers env (if new) and, if it has no snapshot
// installed yet, performs one synchronous fetch-and-install. This is the
// lazy-registration path used by /decide for an environment seen for the
// first time. A call on an environment that already has a snapshot
// installed returns immediately without blocking on the network; a
// registered environment with no snapshot yet is fetched again on every
// call.
func (s *Store) EnsureRegistered(ctx context.Context, env string) error {
	s.mu.Lock()
	e, known := s.entries[env]
	if !known {
		e = &entry{}
		s.entries[env] = e
	}
	s.mu.Unlock()

	if e.snapshot.Load() != nil {
		return nil
	}
	return s.fetchAndInstall(ctx, env, e)
}

// PollOnce iterates every registered environment and attempts to advance
// its snapshot. Each environment's fetch is independently bounded and a
// failure on one environment never affects another; see RunPollLoop for
// the steady-state ~5s cadence this is meant to run under.
func (s *Store) PollOnce(ctx context.Context) {
	s.mu.Lock()
	envs := make([]string, 0, len(s.entries))
	entries := make([]*entry, 0, len(s.entries))
	for env, e := range s.entries {
		envs = append(envs, env)
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for i, env := range envs {
		// A fetch failure (including timeout) silently drops this tick for
		// this environment; no retry within the tick, per the poll
		// contract, and the previously installed snapshot is untouched.
		_ = s.fetchAndInstall(ctx, env, entries[i])
	}
}

// RunPollLoop runs PollOnce on a fixed interval until ctx is cancelled.
// Intended to run as one long-lived goroutine per decision-service
// process.
func (s *Store) RunPollLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}

// fetchAndInstall checks version.json, and only if it reports a version
// strictly greater than what's installed does it fetch the full
// snapshot - which is itself re-checked before install (the stale-write
// guard), since the object store offers no cross-object atomicity and
// the two reads can observe any interleaving of a racing publish.
func (s *Store) fetchAndInstall(ctx context.Context, env string, e *entry) error {
	start := time.Now()
	defer func() { telemetry.PollDuration.Observe(time.Since(start).Seconds()) }()

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	current := e.snapshot.Load()
	currentVersion := 0
	if current != nil {
		currentVersion = current.Version
	}

	indexBytes, err := s.objectStore.Get(fetchCtx, versionIndexKey(env))
	if err != nil {
		return fmt.Errorf("fetch version index for %s: %w", env, err)
	}
	var idx model.VersionIndex
	if err := json.Unmarshal(indexBytes, &idx); err != nil {
		return fmt.Errorf("parse version index for %s: %w", env, err)
	}
	if idx.Version <= currentVersion {
		return nil
	}

	snapshotBytes, err := s.objectStore.Get(fetchCtx, latestSnapshotKey(env))
	if err != nil {
		return fmt.Errorf("fetch latest snapshot for %s: %w", env, err)
	}
	var snap model.ConfigSnapshot
	if err := json.Unmarshal(snapshotBytes, &snap); err != nil {
		return fmt.Errorf("parse latest snapshot for %s: %w", env, err)
	}

	return s.install(e, snap)
}

// install applies the monotonic-install rule: snap only replaces the
// current pointer if its version is strictly greater. Retried under a
// CAS loop since PollOnce and a concurrent EnsureRegistered could race on
// the same entry.
func (s *Store) install(e *entry, snap model.ConfigSnapshot) error {
	for {
		current := e.snapshot.Load()
		if current != nil && snap.Version <= current.Version {
			return nil
		}
		copyOfSnap := snap
		if e.snapshot.CompareAndSwap(current, &copyOfSnap) {
			return nil
		}
	}
}

func latestSnapshotKey(env string) string {
	return fmt.Sprintf("configs/%s/snapshots/latest.json", env)
}

func versionIndexKey(env string) string {
	return fmt.Sprintf("configs/%s/version.json", env)
}
