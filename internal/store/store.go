// Package store defines persistence for the control plane's relational
// model (environments, audiences, experiments and their variants and
// allocations) and the append-only config version history, with an
// in-memory implementation for tests/dev and a PostgreSQL implementation
// for production.
package store

import (
	"context"

	"github.com/flagforge/flagforge/internal/model"
)

// ExperimentFilter narrows a ListExperiments call.
type ExperimentFilter struct {
	EnvironmentID string
	Status        *model.Status
	Page          int
	PageSize      int
}

// Page wraps a slice with the total count needed to compute the
// pagination envelope at the HTTP boundary.
type Page[T any] struct {
	Items []T
	Total int
}

// VariantInput and AllocationInput are the batch-replace payloads for an
// experiment's variants and allocations: each mutation replaces the
// entire set atomically rather than patching individual rows, so the
// invariants (unique keys, non-overlapping ranges, allocations pointing
// at variants that exist) are always checked against a consistent whole.
type VariantInput struct {
	Key     string
	Name    string
	Payload map[string]any
}

type AllocationInput struct {
	VariantKey string
	RangeStart int
	RangeEnd   int
}

// Store is the full persistence surface for the control plane. All
// methods are safe for concurrent use. NotFound/Conflict/Validation
// failures are returned as *model.Error so the HTTP layer can map them
// without inspecting driver-specific error types.
type Store interface {
	CreateEnvironment(ctx context.Context, name string) (model.Environment, error)
	GetEnvironment(ctx context.Context, id string) (model.Environment, error)
	ListEnvironments(ctx context.Context) ([]model.Environment, error)
	DeleteEnvironment(ctx context.Context, id string) error

	CreateAudience(ctx context.Context, envID, name string, rules []model.TargetingRule) (model.Audience, error)
	GetAudience(ctx context.Context, id string) (model.Audience, error)
	ListAudiences(ctx context.Context, envID string, page, pageSize int) (Page[model.Audience], error)
	UpdateAudience(ctx context.Context, id, name string, rules []model.TargetingRule) (model.Audience, error)
	DeleteAudience(ctx context.Context, id string) error

	CreateExperiment(ctx context.Context, envID, key, name, description string, audienceID *string, targetingRules []model.TargetingRule) (model.Experiment, error)
	GetExperiment(ctx context.Context, id string) (model.Experiment, error)
	ListExperiments(ctx context.Context, filter ExperimentFilter) (Page[model.Experiment], error)
	UpdateExperiment(ctx context.Context, id, name, description string, audienceID *string, targetingRules []model.TargetingRule) (model.Experiment, error)
	UpdateExperimentStatus(ctx context.Context, id string, to model.Status) (model.Experiment, error)
	DeleteExperiment(ctx context.Context, id string) error

	ReplaceVariants(ctx context.Context, experimentID string, variants []VariantInput) (model.Experiment, error)
	ReplaceAllocations(ctx context.Context, experimentID string, allocations []AllocationInput) (model.Experiment, error)

	// ListRunningExperiments returns every RUNNING experiment for an
	// environment, fully populated with variants and allocations, in the
	// shape the publisher compiles into a snapshot.
	ListRunningExperiments(ctx context.Context, envID string) ([]model.Experiment, error)

	// RecordConfigVersion appends a new, immutable ConfigVersion row. The
	// version number must be exactly one greater than the environment's
	// current highest version (enforced by the implementation, typically
	// under a single-row lock or serializable transaction) so concurrent
	// publishes for the same environment never collide.
	RecordConfigVersion(ctx context.Context, envID string, snapshot []byte) (model.ConfigVersion, error)
	GetLatestConfigVersion(ctx context.Context, envID string) (model.ConfigVersion, error)

	Close() error
}
