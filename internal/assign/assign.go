// Package assign composes audience and experiment targeting, deterministic
// bucketing, and allocation range lookup into the platform's core decision:
// given a compiled snapshot's experiments, a user key, and an attribute
// context, which variant (if any) does the user see in each experiment.
package assign

import (
	"github.com/flagforge/flagforge/internal/bucketing"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/flagforge/flagforge/internal/targeting"
)

// Assignment is the wire-shaped outcome of one experiment assigning a
// variant to a user.
type Assignment struct {
	ExperimentKey string         `json:"experimentKey"`
	ExperimentID  string         `json:"experimentId"`
	VariantKey    string         `json:"variantKey"`
	VariantID     string         `json:"variantId"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Reason explains why an experiment did or didn't produce an assignment.
// Exposed for diagnostics/debug endpoints; evaluation logic never branches
// on it.
type Reason string

const (
	ReasonAssigned          Reason = "ASSIGNED"
	ReasonAudienceMismatch  Reason = "AUDIENCE_MISMATCH"
	ReasonTargetingMismatch Reason = "TARGETING_MISMATCH"
	ReasonHoldout           Reason = "HOLDOUT"
	ReasonVariantMissing    Reason = "VARIANT_MISSING"
)

// Evaluation is the full diagnostic outcome of evaluating one experiment,
// including the bucket it was assigned to and why it did or didn't
// convert into an Assignment.
type Evaluation struct {
	ExperimentKey string
	Bucket        int
	Reason        Reason
	Assignment    *Assignment
}

// Assign evaluates every experiment against one user and returns the
// assignments actually produced, in snapshot order. Experiments that fail
// audience or targeting, fall into a holdout, or reference a missing
// variant are silently skipped - never an error.
func Assign(experiments []model.ConfigExperiment, userKey string, ctx targeting.Context) []Assignment {
	var out []Assignment
	for _, exp := range experiments {
		if ev := EvaluateExperiment(exp, userKey, ctx); ev.Assignment != nil {
			out = append(out, *ev.Assignment)
		}
	}
	return out
}

// EvaluateExperiment runs the full assignment pipeline for one experiment
// and reports the diagnostic Evaluation, including cases that do not
// produce an assignment. Used by Assign and by debug/diagnostic surfaces
// that need to explain a non-assignment.
func EvaluateExperiment(exp model.ConfigExperiment, userKey string, ctx targeting.Context) Evaluation {
	if !targeting.Evaluate(exp.AudienceRules, ctx) {
		return Evaluation{ExperimentKey: exp.Key, Reason: ReasonAudienceMismatch}
	}
	if !targeting.Evaluate(exp.TargetingRules, ctx) {
		return Evaluation{ExperimentKey: exp.Key, Reason: ReasonTargetingMismatch}
	}

	bucket := bucketing.Bucket(userKey, exp.Salt)

	variantID, ok := lookupAllocation(exp.Allocations, bucket)
	if !ok {
		return Evaluation{ExperimentKey: exp.Key, Bucket: bucket, Reason: ReasonHoldout}
	}

	variant := lookupVariant(exp.Variants, variantID)
	if variant == nil {
		return Evaluation{ExperimentKey: exp.Key, Bucket: bucket, Reason: ReasonVariantMissing}
	}

	return Evaluation{
		ExperimentKey: exp.Key,
		Bucket:        bucket,
		Reason:        ReasonAssigned,
		Assignment: &Assignment{
			ExperimentKey: exp.Key,
			ExperimentID:  exp.ID,
			VariantKey:    variant.Key,
			VariantID:     variant.ID,
			Payload:       variant.Payload,
		},
	}
}

// lookupAllocation finds the variant ID whose range contains bucket.
// Ranges are inclusive on both ends and never overlap within one
// experiment (enforced by the store when allocations are replaced), so at
// most one match exists. A
// bucket not covered by any range is a holdout, not an error.
func lookupAllocation(allocations []model.ConfigAllocation, bucket int) (string, bool) {
	for _, a := range allocations {
		if bucket >= a.RangeStart && bucket <= a.RangeEnd {
			return a.VariantID, true
		}
	}
	return "", false
}

func lookupVariant(variants []model.ConfigVariant, variantID string) *model.ConfigVariant {
	for i := range variants {
		if variants[i].ID == variantID {
			return &variants[i]
		}
	}
	return nil
}
