// Package validation provides request-level validation shared by the
// control-plane handlers, ahead of the invariants the store itself
// enforces (uniqueness, referential integrity, bucket-range bounds).
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/flagforge/flagforge/internal/model"
)

const (
	// MaxKeyLength is the maximum length for experiment and variant keys.
	MaxKeyLength = 64
	// MaxNameLength is the maximum length for environment, audience and
	// experiment names.
	MaxNameLength = 128
	// MaxDescriptionLength is the maximum length for an experiment
	// description.
	MaxDescriptionLength = 2000
	// MaxAttributeLength is the maximum length of a targeting condition's
	// attribute path.
	MaxAttributeLength = 256
)

// keyPattern matches alphanumeric characters, underscores, and hyphens.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Result holds the outcome of a validation pass: a map of field name to a
// human-readable message, so the HTTP boundary can surface it via
// model.NewValidationErrorWithFields.
type Result struct {
	Errors map[string]string
}

func newResult() *Result {
	return &Result{Errors: make(map[string]string)}
}

func (r *Result) addError(field, message string) {
	r.Errors[field] = message
}

func (r *Result) merge(other *Result) {
	for field, message := range other.Errors {
		r.addError(field, message)
	}
}

// Valid reports whether no field errors were recorded.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err converts a failed Result into a *model.Error, or nil if valid.
func (r *Result) Err(summary string) error {
	if r.Valid() {
		return nil
	}
	return model.NewValidationErrorWithFields(summary, r.Errors)
}

// ValidateKey validates an experiment or variant key.
func ValidateKey(field, key string) *Result {
	result := newResult()
	key = strings.TrimSpace(key)

	if key == "" {
		result.addError(field, "key is required")
		return result
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		result.addError(field, "key must not exceed 64 characters")
		return result
	}
	if !keyPattern.MatchString(key) {
		result.addError(field, "key must contain only alphanumeric characters, underscores, and hyphens")
	}
	return result
}

// ValidateName validates a human-readable name field.
func ValidateName(field, name string) *Result {
	result := newResult()
	name = strings.TrimSpace(name)

	if name == "" {
		result.addError(field, "name is required")
		return result
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		result.addError(field, "name must not exceed 128 characters")
	}
	return result
}

// ValidateDescription validates an optional description field.
func ValidateDescription(description string) *Result {
	result := newResult()
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		result.addError("description", "description must not exceed 2000 characters")
	}
	return result
}

// ValidateTargetingRules checks structural validity: every condition names
// a non-empty attribute of at most 256 characters. Operators are not
// checked. Unknown operators are
// not rejected here - targeting.Evaluate already treats them as an
// always-false condition - but an empty attribute is a request mistake
// worth catching at the boundary.
func ValidateTargetingRules(rules []model.TargetingRule) *Result {
	result := newResult()
	for _, rule := range rules {
		for _, cond := range rule.Conditions {
			if strings.TrimSpace(cond.Attribute) == "" {
				result.addError("targetingRules", "condition attribute is required")
				return result
			}
			if utf8.RuneCountInString(cond.Attribute) > MaxAttributeLength {
				result.addError("targetingRules", "condition attribute must not exceed 256 characters")
				return result
			}
		}
	}
	return result
}

// ValidateExperimentCreate runs every field-level check for a new
// experiment and merges them into one Result.
func ValidateExperimentCreate(key, name, description string, rules []model.TargetingRule) *Result {
	result := newResult()
	result.merge(ValidateKey("key", key))
	result.merge(ValidateName("name", name))
	result.merge(ValidateDescription(description))
	result.merge(ValidateTargetingRules(rules))
	return result
}
