// Package publish compiles an environment's RUNNING experiments into a
// versioned ConfigSnapshot and writes it to the object store at the three
// keys the decision fleet expects. There is no cross-object atomicity:
// the three PUTs race each other and the stale-write guard on the
// reading side is what keeps this safe, not ordering here.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/objectstore"
	"github.com/flagforge/flagforge/internal/store"
	"github.com/flagforge/flagforge/internal/telemetry"
	"github.com/flagforge/flagforge/internal/webhook"
)

const contentTypeJSON = "application/json"

// Publisher compiles and writes config snapshots for one platform
// deployment (one store, one object-store bucket shared across
// environments, differing only by key prefix).
type Publisher struct {
	store       store.Store
	objectStore objectstore.Store
	Webhooks    *webhook.Dispatcher // nil is a legal, no-op configuration
}

func NewPublisher(s store.Store, os objectstore.Store) *Publisher {
	return &Publisher{store: s, objectStore: os}
}

// Publish compiles the environment's currently RUNNING experiments,
// records a new ConfigVersion row (source of the monotonic version
// number), and writes the versioned snapshot, the latest-snapshot
// pointer, and the version pointer. It returns the compiled snapshot,
// version number included, on success. Any write failure returns a
// *model.Error of kind ErrKindPublish; callers (see internal/controlplane)
// must still let the triggering mutation succeed and surface the publish
// outcome separately.
func (p *Publisher) Publish(ctx context.Context, envID string) (snapshot model.ConfigSnapshot, err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		telemetry.PublishTotal.WithLabelValues(envID, result).Inc()
	}()

	env, err := p.store.GetEnvironment(ctx, envID)
	if err != nil {
		return model.ConfigSnapshot{}, err
	}

	experiments, err := p.store.ListRunningExperiments(ctx, envID)
	if err != nil {
		return model.ConfigSnapshot{}, model.NewPublishError("failed to load running experiments", err)
	}

	configExperiments := make([]model.ConfigExperiment, 0, len(experiments))
	for _, exp := range experiments {
		ce, err := compileExperiment(ctx, p.store, exp)
		if err != nil {
			return model.ConfigSnapshot{}, model.NewPublishError("failed to compile experiment "+exp.Key, err)
		}
		configExperiments = append(configExperiments, ce)
	}

	// RecordConfigVersion assigns the version number atomically, so the
	// bytes below are authoritative the instant this call returns.
	placeholderSnapshot := model.ConfigSnapshot{
		Environment: env.Name,
		PublishedAt: time.Now().UTC(),
		Experiments: configExperiments,
	}
	snapshotBytes, err := json.Marshal(placeholderSnapshot)
	if err != nil {
		return model.ConfigSnapshot{}, model.NewPublishError("failed to marshal snapshot", err)
	}

	cv, err := p.store.RecordConfigVersion(ctx, envID, snapshotBytes)
	if err != nil {
		return model.ConfigSnapshot{}, model.NewPublishError("failed to record config version", err)
	}

	finalSnapshot := placeholderSnapshot
	finalSnapshot.Version = cv.Version
	finalBytes, err := json.Marshal(finalSnapshot)
	if err != nil {
		return model.ConfigSnapshot{}, model.NewPublishError("failed to marshal final snapshot", err)
	}

	if err := p.writeObjects(ctx, env.Name, cv.Version, finalBytes); err != nil {
		return finalSnapshot, model.NewPublishError("failed to write snapshot to object store", err)
	}
	telemetry.ConfigVersion.WithLabelValues(env.Name).Set(float64(cv.Version))

	if p.Webhooks != nil {
		p.Webhooks.Dispatch(webhook.Event{
			Type:        webhook.EventConfigPublished,
			Timestamp:   time.Now().UTC(),
			Environment: env.Name,
			Resource:    webhook.Resource{Type: "configVersion", Key: fmt.Sprintf("%d", cv.Version)},
			Data:        webhook.EventData{Version: cv.Version},
		})
	}

	return finalSnapshot, nil
}

// writeObjects fires the three PUTs concurrently, matching the spec's
// explicit no-cross-object-atomicity contract: a caller cannot assume any
// ordering between them.
func (p *Publisher) writeObjects(ctx context.Context, envName string, version int, body []byte) error {
	versionIndexBytes, err := json.Marshal(model.VersionIndex{Version: version})
	if err != nil {
		return err
	}

	keys := map[string][]byte{
		versionedSnapshotKey(envName, version): body,
		latestSnapshotKey(envName):             body,
		versionIndexKey(envName):                versionIndexBytes,
	}

	var wg sync.WaitGroup
	errs := make([]error, 0, len(keys))
	var mu sync.Mutex

	for key, payload := range keys {
		wg.Add(1)
		go func(key string, payload []byte) {
			defer wg.Done()
			if err := p.objectStore.Put(ctx, key, payload, contentTypeJSON); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				mu.Unlock()
			}
		}(key, payload)
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d object writes failed: %v", len(errs), len(keys), errs)
	}
	return nil
}

func versionedSnapshotKey(env string, version int) string {
	return fmt.Sprintf("configs/%s/snapshots/%d.json", env, version)
}

func latestSnapshotKey(env string) string {
	return fmt.Sprintf("configs/%s/snapshots/latest.json", env)
}

func versionIndexKey(env string) string {
	return fmt.Sprintf("configs/%s/version.json", env)
}

// compileExperiment materialises an experiment's audience rules inline
// (the decision side never resolves audienceId) and projects it into the
// wire-minimal ConfigExperiment shape.
func compileExperiment(ctx context.Context, s store.Store, exp model.Experiment) (model.ConfigExperiment, error) {
	var audienceRules []model.TargetingRule
	if exp.AudienceID != nil {
		aud, err := s.GetAudience(ctx, *exp.AudienceID)
		if err != nil {
			return model.ConfigExperiment{}, err
		}
		audienceRules = aud.Rules
	}

	variants := make([]model.ConfigVariant, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		variants = append(variants, model.ConfigVariant{ID: v.ID, Key: v.Key, Payload: v.Payload})
	}

	allocations := make([]model.ConfigAllocation, 0, len(exp.Allocations))
	for _, a := range exp.Allocations {
		allocations = append(allocations, model.ConfigAllocation{
			VariantID:  a.VariantID,
			RangeStart: a.RangeStart,
			RangeEnd:   a.RangeEnd,
		})
	}

	return model.ConfigExperiment{
		ID:             exp.ID,
		Key:            exp.Key,
		Salt:           exp.Salt,
		AudienceRules:  audienceRules,
		TargetingRules: exp.TargetingRules,
		Variants:       variants,
		Allocations:    allocations,
	}, nil
}
