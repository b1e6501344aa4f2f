package engine

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Condition is one predicate on the event context. A rule fires only if
// every one of its conditions holds (conjunctive semantics).
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Supported condition operators. Anything else fails closed.
const (
	OpEquals    = "eq"
	OpNotEquals = "neq"
	OpContains  = "contains"
	OpGreater   = "gt"
	OpGreaterEq = "gte"
	OpLess      = "lt"
	OpLessEq    = "lte"
	OpIn        = "in" // value is a comma-separated list
)

var knownOperators = map[string]bool{
	OpEquals:    true,
	OpNotEquals: true,
	OpContains:  true,
	OpGreater:   true,
	OpGreaterEq: true,
	OpLess:      true,
	OpLessEq:    true,
	OpIn:        true,
}

// ParseConditions decodes a rule's conditions JSON and rejects unknown
// operators up front, so a bad rule definition fails at creation time
// rather than silently matching at evaluation time.
func ParseConditions(raw string) ([]Condition, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var conds []Condition
	if err := json.Unmarshal([]byte(raw), &conds); err != nil {
		return nil, validationf("invalid conditions json: %v", err)
	}
	for _, c := range conds {
		if c.Field == "" {
			return nil, validationf("condition missing field")
		}
		if !knownOperators[c.Operator] {
			return nil, validationf("unknown condition operator %q", c.Operator)
		}
	}
	return conds, nil
}

// evalConditions reports whether every condition holds against the
// event context. A field absent from the context never matches.
func evalConditions(conds []Condition, ctx map[string]string) (bool, error) {
	for _, c := range conds {
		ok, err := evalCondition(c, ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalCondition(c Condition, ctx map[string]string) (bool, error) {
	got, present := ctx[c.Field]

	switch c.Operator {
	case OpEquals:
		return present && got == c.Value, nil
	case OpNotEquals:
		return present && got != c.Value, nil
	case OpContains:
		return present && strings.Contains(got, c.Value), nil
	case OpIn:
		if !present {
			return false, nil
		}
		for _, v := range strings.Split(c.Value, ",") {
			if strings.TrimSpace(v) == got {
				return true, nil
			}
		}
		return false, nil
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		if !present {
			return false, nil
		}
		lhs, err := strconv.ParseFloat(got, 64)
		if err != nil {
			return false, nil // non-numeric context value never satisfies a numeric compare
		}
		rhs, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return false, validationf("condition on %q: non-numeric value %q for %s", c.Field, c.Value, c.Operator)
		}
		switch c.Operator {
		case OpGreater:
			return lhs > rhs, nil
		case OpGreaterEq:
			return lhs >= rhs, nil
		case OpLess:
			return lhs < rhs, nil
		default:
			return lhs <= rhs, nil
		}
	default:
		return false, validationf("unknown condition operator %q", c.Operator)
	}
}
