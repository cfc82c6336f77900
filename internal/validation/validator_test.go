package validation

import (
	"testing"

	"github.com/flagforge/flagforge/internal/model"
)

func TestValidateKey(t *testing.T) {
	cases := []struct {
		key   string
		valid bool
	}{
		{"checkout-v2", true},
		{"checkout_v2", true},
		{"", false},
		{"has spaces", false},
		{"has/slash", false},
	}
	for _, c := range cases {
		result := ValidateKey("key", c.key)
		if result.Valid() != c.valid {
			t.Errorf("ValidateKey(%q) valid=%v, want %v (errors=%v)", c.key, result.Valid(), c.valid, result.Errors)
		}
	}
}

func TestValidateName_Empty(t *testing.T) {
	if ValidateName("name", "  ").Valid() {
		t.Error("expected blank name to be invalid")
	}
}

func TestValidateTargetingRules_EmptyAttributeRejected(t *testing.T) {
	rules := []model.TargetingRule{
		{Conditions: []model.TargetingCondition{{Attribute: "", Operator: model.OpEq, Value: "x"}}},
	}
	if ValidateTargetingRules(rules).Valid() {
		t.Error("expected empty attribute to be rejected")
	}
}

func TestValidateTargetingRules_UnknownOperatorIsStructurallyValid(t *testing.T) {
	rules := []model.TargetingRule{
		{Conditions: []model.TargetingCondition{{Attribute: "country", Operator: "regex", Value: "x"}}},
	}
	if !ValidateTargetingRules(rules).Valid() {
		t.Error("unknown operators are a semantic no-op, not a request error")
	}
}

func TestValidateExperimentCreate_AccumulatesAllFieldErrors(t *testing.T) {
	result := ValidateExperimentCreate("", "", "", nil)
	if result.Valid() {
		t.Fatal("expected invalid result")
	}
	if _, ok := result.Errors["key"]; !ok {
		t.Error("expected a key error")
	}
	if _, ok := result.Errors["name"]; !ok {
		t.Error("expected a name error")
	}
}
