// Package model defines the core data types shared by the control plane and
// the decision fleet: environments, audiences, experiments and their
// variants/allocations, the append-only config version audit trail, and the
// compiled ConfigSnapshot that the publisher writes and the decision side
// consumes.
package model

import "time"

// Status is the lifecycle state of an Experiment.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusRunning  Status = "RUNNING"
	StatusPaused   Status = "PAUSED"
	StatusArchived Status = "ARCHIVED"
)

// Environment is the root of isolation; every other entity is scoped to
// exactly one environment.
type Environment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Operator is a targeting condition comparator. The set is closed and
// wire-stable: an operator outside this list is "unknown" and always
// evaluates to false (see targeting.Evaluate).
type Operator string

const (
	OpEq      Operator = "eq"
	OpNeq     Operator = "neq"
	OpIn      Operator = "in"
	OpNotIn   Operator = "notIn"
	OpContains Operator = "contains"
	OpGt      Operator = "gt"
	OpLt      Operator = "lt"
)

// TargetingCondition is one typed predicate against a dot-path attribute.
type TargetingCondition struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value"`
}

// TargetingRule is AND-of-conditions; a list of rules is OR-of-rules. An
// empty condition list matches everyone; an empty rule list matches
// everyone.
type TargetingRule struct {
	Conditions []TargetingCondition `json:"conditions"`
}

// Audience is a reusable, named list of targeting rules scoped to an
// environment. The decision side never resolves audiences by id - it only
// ever sees the materialized rules inlined into a ConfigExperiment at
// publish time.
type Audience struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	EnvironmentID string          `json:"environmentId"`
	Rules         []TargetingRule `json:"rules"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Variant is a named branch of an experiment carrying an optional JSON
// payload (an object, never an array or scalar).
type Variant struct {
	ID           string         `json:"id"`
	Key          string         `json:"key"`
	Name         string         `json:"name"`
	Payload      map[string]any `json:"payload,omitempty"`
	ExperimentID string         `json:"experimentId"`
}

// Allocation maps a bucket range to one variant. Ranges within one
// experiment must not overlap and need not cover [0,9999] - uncovered
// buckets are a holdout.
type Allocation struct {
	ID           string `json:"id"`
	VariantID    string `json:"variantId"`
	RangeStart   int    `json:"rangeStart"`
	RangeEnd     int    `json:"rangeEnd"`
	ExperimentID string `json:"experimentId"`
}

// Experiment is the unit of assignment: a salted bucketing space, an
// optional audience filter, its own targeting rules, and the
// variants/allocations that divide its buckets.
type Experiment struct {
	ID             string          `json:"id"`
	Key            string          `json:"key"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Salt           string          `json:"salt"`
	Status         Status          `json:"status"`
	EnvironmentID  string          `json:"environmentId"`
	AudienceID     *string         `json:"audienceId,omitempty"`
	TargetingRules []TargetingRule `json:"targetingRules"`
	Variants       []Variant       `json:"variants"`
	Allocations    []Allocation    `json:"allocations"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ConfigVersion is an append-only audit row embedding the full compiled
// snapshot for one environment at one point in time.
type ConfigVersion struct {
	ID            string    `json:"id"`
	EnvironmentID string    `json:"environmentId"`
	Version       int       `json:"version"`
	Snapshot      []byte    `json:"snapshot"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ConfigExperiment is the read-optimised, pre-indexed projection of an
// Experiment embedded in a ConfigSnapshot. Audience rules are materialised
// here at compile time so the decision side never dereferences audienceId.
type ConfigExperiment struct {
	ID             string                  `json:"id"`
	Key            string                  `json:"key"`
	Salt           string                  `json:"salt"`
	AudienceRules  []TargetingRule         `json:"audienceRules"`
	TargetingRules []TargetingRule         `json:"targetingRules"`
	Variants       []ConfigVariant         `json:"variants"`
	Allocations    []ConfigAllocation      `json:"allocations"`
}

// ConfigVariant is the wire-minimal variant projection.
type ConfigVariant struct {
	ID      string         `json:"id"`
	Key     string         `json:"key"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ConfigAllocation is the wire-minimal allocation projection.
type ConfigAllocation struct {
	VariantID  string `json:"variantId"`
	RangeStart int    `json:"rangeStart"`
	RangeEnd   int    `json:"rangeEnd"`
}

// ConfigSnapshot is the published, immutable artifact the decision side
// evaluates against. Once written under a version, the bytes never change;
// only the "latest" and "version" pointer objects are overwritten.
type ConfigSnapshot struct {
	Version     int                `json:"version"`
	Environment string             `json:"environment"`
	PublishedAt time.Time          `json:"publishedAt"`
	Experiments []ConfigExperiment `json:"experiments"`
}

// VersionIndex is the small pointer object pollers check before fetching
// the full snapshot.
type VersionIndex struct {
	Version int `json:"version"`
}
