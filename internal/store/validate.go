package store

import (
	"fmt"
	"sort"

	"github.com/flagforge/flagforge/internal/model"
)

const maxBucket = 9999

// validateVariantInputs checks the whole-set invariants for a variant
// batch-replace: non-empty keys, non-empty names, and unique keys within
// the experiment.
func validateVariantInputs(variants []VariantInput) error {
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v.Key == "" {
			return model.NewValidationError("variant key must not be empty")
		}
		if v.Name == "" {
			return model.NewValidationError("variant name must not be empty")
		}
		if seen[v.Key] {
			return model.NewValidationErrorWithFields("duplicate variant key", map[string]string{"key": v.Key})
		}
		seen[v.Key] = true
	}
	return nil
}

// validateAllocationInputs checks range bounds, that every referenced
// variant key exists in variantKeys, and that ranges within the
// experiment do not overlap. Allocations need not cover [0, 9999].
func validateAllocationInputs(allocations []AllocationInput, variantKeys map[string]bool) error {
	type rng struct{ start, end int }
	ranges := make([]rng, 0, len(allocations))

	for _, a := range allocations {
		if a.RangeStart < 0 || a.RangeEnd > maxBucket || a.RangeStart > a.RangeEnd {
			return model.NewValidationErrorWithFields("allocation range out of bounds", map[string]string{
				"rangeStart": fmt.Sprint(a.RangeStart),
				"rangeEnd":   fmt.Sprint(a.RangeEnd),
			})
		}
		if !variantKeys[a.VariantKey] {
			return model.NewValidationErrorWithFields("allocation references unknown variant", map[string]string{
				"variantKey": a.VariantKey,
			})
		}
		ranges = append(ranges, rng{a.RangeStart, a.RangeEnd})
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].start <= ranges[i-1].end {
			return model.NewValidationError("allocation ranges must not overlap")
		}
	}
	return nil
}
