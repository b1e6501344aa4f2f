package engine

import (
	"testing"
)

func TestParseConditionsRejectsUnknownOperator(t *testing.T) {
	_, err := ParseConditions(`[{"field":"source","operator":"matches","value":"web"}]`)
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
	if !IsValidation(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestParseConditionsEmpty(t *testing.T) {
	for _, raw := range []string{"", "[]"} {
		conds, err := ParseConditions(raw)
		if err != nil {
			t.Errorf("ParseConditions(%q): %v", raw, err)
		}
		if conds != nil {
			t.Errorf("ParseConditions(%q) = %v, want nil", raw, conds)
		}
	}
}

func TestEvalConditions(t *testing.T) {
	ctx := map[string]string{
		"source":   "web",
		"duration": "45",
		"campaign": "spring-launch",
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq match", Condition{"source", OpEquals, "web"}, true},
		{"eq mismatch", Condition{"source", OpEquals, "phone"}, false},
		{"eq absent field", Condition{"missing", OpEquals, "web"}, false},
		{"neq match", Condition{"source", OpNotEquals, "phone"}, true},
		{"neq absent field", Condition{"missing", OpNotEquals, "web"}, false},
		{"contains match", Condition{"campaign", OpContains, "spring"}, true},
		{"contains mismatch", Condition{"campaign", OpContains, "winter"}, false},
		{"gt match", Condition{"duration", OpGreater, "30"}, true},
		{"gt mismatch", Condition{"duration", OpGreater, "45"}, false},
		{"gte boundary", Condition{"duration", OpGreaterEq, "45"}, true},
		{"lt match", Condition{"duration", OpLess, "60"}, true},
		{"lte boundary", Condition{"duration", OpLessEq, "45"}, true},
		{"in match", Condition{"source", OpIn, "web, phone, email"}, true},
		{"in mismatch", Condition{"source", OpIn, "phone, email"}, false},
		{"numeric on non-numeric context", Condition{"source", OpGreater, "10"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalConditions([]Condition{tt.cond}, ctx)
			if err != nil {
				t.Fatalf("evalConditions: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalConditionsConjunctive(t *testing.T) {
	ctx := map[string]string{"source": "web", "duration": "45"}

	conds := []Condition{
		{"source", OpEquals, "web"},
		{"duration", OpGreater, "30"},
	}
	ok, err := evalConditions(conds, ctx)
	if err != nil || !ok {
		t.Errorf("all-true conditions: ok=%v err=%v", ok, err)
	}

	conds = append(conds, Condition{"source", OpEquals, "phone"})
	ok, err = evalConditions(conds, ctx)
	if err != nil {
		t.Fatalf("evalConditions: %v", err)
	}
	if ok {
		t.Error("one failing condition must reject the rule")
	}
}

func TestEvalConditionFailsClosedOnUnknownOperator(t *testing.T) {
	ok, err := evalCondition(Condition{"source", "matches", "web"}, map[string]string{"source": "web"})
	if ok {
		t.Error("unknown operator matched")
	}
	if err == nil {
		t.Error("expected error for unknown operator")
	}
}

func TestEvalConditionBadNumericValue(t *testing.T) {
	ok, err := evalCondition(Condition{"duration", OpGreater, "not-a-number"}, map[string]string{"duration": "45"})
	if ok {
		t.Error("bad rule value matched")
	}
	if err == nil || !IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
