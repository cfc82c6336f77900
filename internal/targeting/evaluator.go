// Package targeting evaluates TargetingRule lists against a user context.
// Semantics are part of the wire contract: OR across rules, AND within a
// rule, exact-key-then-dot-path attribute resolution, and a closed set of
// typed operators where anything unrecognised is false rather than an
// error - the snapshot is trusted but forward-compatible.
package targeting

import (
	"strings"

	"github.com/flagforge/flagforge/internal/model"
)

// Context is the recursive, untyped JSON map a condition's attribute is
// resolved against.
type Context map[string]any

// undefinedT is the sentinel resolution for an attribute that cannot be
// found; every operator treats it as a non-match.
type undefinedT struct{}

var undefined any = undefinedT{}

// Evaluate reports whether the rule list matches ctx. An empty list is a
// universal match. A non-empty list matches iff any rule matches, and a
// rule matches iff all of its conditions match (an empty condition list
// counts as a match).
func Evaluate(rules []model.TargetingRule, ctx Context) bool {
	if len(rules) == 0 {
		return true
	}
	for _, rule := range rules {
		if ruleMatches(rule, ctx) {
			return true
		}
	}
	return false
}

func ruleMatches(rule model.TargetingRule, ctx Context) bool {
	for _, cond := range rule.Conditions {
		if !conditionMatches(cond, ctx) {
			return false
		}
	}
	return true
}

func conditionMatches(cond model.TargetingCondition, ctx Context) bool {
	v := resolveAttribute(ctx, cond.Attribute)
	switch cond.Operator {
	case model.OpEq:
		return eq(v, cond.Value)
	case model.OpNeq:
		if v == undefined {
			return false
		}
		return !eq(v, cond.Value)
	case model.OpIn:
		return inSequence(v, cond.Value)
	case model.OpNotIn:
		if v == undefined {
			return false
		}
		return !inSequence(v, cond.Value)
	case model.OpContains:
		return contains(v, cond.Value)
	case model.OpGt:
		return numericCompare(v, cond.Value, func(a, b float64) bool { return a > b })
	case model.OpLt:
		return numericCompare(v, cond.Value, func(a, b float64) bool { return a < b })
	default:
		return false
	}
}

// resolveAttribute implements the exact-key-then-dot-path rule: the full
// attribute string is tried first as a single top-level key (so attributes
// whose real name contains dots can still be matched exactly); only if
// that's absent, and the attribute does contain a dot, do we split and walk.
func resolveAttribute(ctx Context, attribute string) any {
	if ctx == nil {
		return undefined
	}
	if v, ok := ctx[attribute]; ok {
		return v
	}
	if !strings.Contains(attribute, ".") {
		return undefined
	}
	segments := strings.Split(attribute, ".")
	var cur any = map[string]any(ctx)
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return undefined
		}
		next, ok := m[seg]
		if !ok {
			return undefined
		}
		cur = next
	}
	return cur
}

// eq implements strict equality: types must match (21 != "21"); numbers of
// type float64, float32, int, int32 or int64 compare by value across those
// types.
func eq(v, c any) bool {
	if v == undefined {
		return false
	}
	switch cv := v.(type) {
	case string:
		sc, ok := c.(string)
		return ok && cv == sc
	case bool:
		bc, ok := c.(bool)
		return ok && cv == bc
	default:
		if vf, ok := toFloat(v); ok {
			cf, ok := toFloat(c)
			return ok && vf == cf
		}
		return v == c
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// inSequence reports whether c is a sequence containing an element equal
// (by eq semantics) to v. A non-sequence condition value is always false.
func inSequence(v, c any) bool {
	if v == undefined {
		return false
	}
	items, ok := toSlice(c)
	if !ok {
		return false
	}
	for _, item := range items {
		if eq(v, item) {
			return true
		}
	}
	return false
}

func toSlice(c any) ([]any, bool) {
	switch vals := c.(type) {
	case []any:
		return vals, true
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// contains requires both sides to be strings.
func contains(v, c any) bool {
	if v == undefined {
		return false
	}
	vs, ok := v.(string)
	if !ok {
		return false
	}
	cs, ok := c.(string)
	if !ok {
		return false
	}
	return strings.Contains(vs, cs)
}

// numericCompare requires both sides to be numbers; strings are never
// coerced ("79" vs 80 is always false).
func numericCompare(v, c any, cmp func(a, b float64) bool) bool {
	if v == undefined {
		return false
	}
	vf, ok := toFloat(v)
	if !ok {
		return false
	}
	cf, ok := toFloat(c)
	if !ok {
		return false
	}
	return cmp(vf, cf)
}
