package engine

import (
	"encoding/json"
	"fmt"

	"github.com/copperline/copperline/internal/store"
)

// ModelSpec is the caller-facing shape for creating a scoring model.
type ModelSpec struct {
	Name               string `json:"name"`
	IsDefault          bool   `json:"is_default"`
	QualifiedThreshold int    `json:"qualified_threshold"`
	CustomerThreshold  int    `json:"customer_threshold"`
}

// RuleSpec is the caller-facing shape for creating a scoring rule.
type RuleSpec struct {
	EventType      string      `json:"event_type"`
	Points         int         `json:"points"`
	DecayDays      *int        `json:"decay_days,omitempty"`
	DecayPoints    *int        `json:"decay_points,omitempty"`
	MaxOccurrences *int        `json:"max_occurrences,omitempty"`
	CooldownHours  *int        `json:"cooldown_hours,omitempty"`
	Conditions     []Condition `json:"conditions,omitempty"`
}

// CreateModel validates and persists a scoring model. Making it the
// default atomically un-defaults the prior holder.
func (e *Engine) CreateModel(spec ModelSpec) (*store.ScoringModel, error) {
	if spec.Name == "" {
		return nil, validationf("model name required")
	}
	if spec.QualifiedThreshold < 0 || spec.CustomerThreshold < 0 {
		return nil, validationf("thresholds must be non-negative")
	}
	if spec.CustomerThreshold < spec.QualifiedThreshold {
		return nil, validationf("customer threshold must be >= qualified threshold")
	}

	m, err := e.DB.CreateModel(spec.Name, spec.IsDefault, spec.QualifiedThreshold, spec.CustomerThreshold)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	e.rules.Invalidate()
	return m, nil
}

// ListModels returns all scoring models, newest first.
func (e *Engine) ListModels() ([]store.ScoringModel, error) {
	return e.DB.ListModels()
}

// CreateRule validates and persists a rule under the given model.
// Unknown event types, out-of-range points, and unknown condition
// operators are rejected here so they can never reach evaluation.
func (e *Engine) CreateRule(modelID int64, spec RuleSpec) (*store.ScoringRule, error) {
	if !ValidEventType(spec.EventType) {
		return nil, validationf("unknown event type %q", spec.EventType)
	}
	if spec.Points < minRulePoints || spec.Points > maxRulePoints {
		return nil, validationf("points must be in [%d, %d]", minRulePoints, maxRulePoints)
	}
	for _, check := range []struct {
		name string
		val  *int
	}{
		{"decay_days", spec.DecayDays},
		{"max_occurrences", spec.MaxOccurrences},
		{"cooldown_hours", spec.CooldownHours},
	} {
		if check.val != nil && *check.val <= 0 {
			return nil, validationf("%s must be positive", check.name)
		}
	}
	for _, c := range spec.Conditions {
		if c.Field == "" {
			return nil, validationf("condition missing field")
		}
		if !knownOperators[c.Operator] {
			return nil, validationf("unknown condition operator %q", c.Operator)
		}
	}

	model, err := e.DB.GetModel(modelID)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if model == nil {
		return nil, &NotFoundError{Kind: "model", ID: fmt.Sprint(modelID)}
	}

	conditions := "[]"
	if len(spec.Conditions) > 0 {
		raw, err := json.Marshal(spec.Conditions)
		if err != nil {
			return nil, fmt.Errorf("encode conditions: %w", err)
		}
		conditions = string(raw)
	}

	rule := &store.ScoringRule{
		ModelID:        modelID,
		EventType:      spec.EventType,
		Points:         spec.Points,
		IsActive:       true,
		DecayDays:      spec.DecayDays,
		DecayPoints:    spec.DecayPoints,
		MaxOccurrences: spec.MaxOccurrences,
		CooldownHours:  spec.CooldownHours,
		Conditions:     conditions,
	}
	if err := e.DB.CreateRule(rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	e.rules.Invalidate()
	return rule, nil
}

// SetRuleActive toggles a rule. Deactivation stops new applications but
// never removes past contributions or their staged decay.
func (e *Engine) SetRuleActive(ruleID int64, active bool) error {
	if err := e.DB.SetRuleActive(ruleID, active); err != nil {
		return err
	}
	e.rules.Invalidate()
	return nil
}
