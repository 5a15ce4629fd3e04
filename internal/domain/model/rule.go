package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpInSet       Operator = "in_set"
	OpNotInSet    Operator = "not_in_set"
)

// Negated reports whether the operator holds when the field is absent.
func (o Operator) Negated() bool {
	switch o {
	case OpNotEquals, OpNotContains, OpNotInSet:
		return true
	}
	return false
}

// Known reports whether o is one of the supported operators.
func (o Operator) Known() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
		OpContains, OpNotContains, OpInSet, OpNotInSet:
		return true
	}
	return false
}

type ValueKind string

const (
	ValueString    ValueKind = "string"
	ValueNumber    ValueKind = "number"
	ValueStringSet ValueKind = "string_set"
)

// ConditionValue is the comparison literal of a Condition. Its kind is fixed
// when the rule is authored.
type ConditionValue struct {
	Kind   ValueKind `json:"kind" yaml:"kind"`
	String string    `json:"string,omitempty" yaml:"string,omitempty"`
	Number float64   `json:"number,omitempty" yaml:"number,omitempty"`
	Set    []string  `json:"set,omitempty" yaml:"set,omitempty"`
}

func StringValue(s string) ConditionValue {
	return ConditionValue{Kind: ValueString, String: s}
}

func NumberValue(n float64) ConditionValue {
	return ConditionValue{Kind: ValueNumber, Number: n}
}

func SetValue(members ...string) ConditionValue {
	return ConditionValue{Kind: ValueStringSet, Set: members}
}

// Text returns the string form of a scalar value.
func (v ConditionValue) Text() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueStringSet:
		return strings.Join(v.Set, ",")
	default:
		return v.String
	}
}

// Members returns the set members. A string value is split on commas.
func (v ConditionValue) Members() []string {
	switch v.Kind {
	case ValueStringSet:
		return v.Set
	case ValueString:
		parts := strings.Split(v.String, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []string{v.Text()}
	}
}

type Condition struct {
	Field    string         `json:"field" yaml:"field"`
	Operator Operator       `json:"operator" yaml:"operator"`
	Value    ConditionValue `json:"value" yaml:"value"`
}

// Validate checks that the operator is known and accepts the value kind.
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("%w: empty field", ErrMalformedCondition)
	}
	if !c.Operator.Known() {
		return fmt.Errorf("%w: unknown operator %q", ErrMalformedCondition, c.Operator)
	}
	ok := false
	switch c.Operator {
	case OpEquals, OpNotEquals:
		ok = c.Value.Kind == ValueString || c.Value.Kind == ValueNumber
	case OpGreaterThan, OpLessThan:
		ok = c.Value.Kind == ValueNumber
	case OpContains, OpNotContains:
		ok = c.Value.Kind == ValueString || c.Value.Kind == ValueNumber
	case OpInSet, OpNotInSet:
		ok = c.Value.Kind == ValueStringSet || c.Value.Kind == ValueString
	}
	if !ok {
		return fmt.Errorf("%w: operator %s does not accept %q values", ErrMalformedCondition, c.Operator, c.Value.Kind)
	}
	return nil
}

type Action struct {
	ProviderID         string            `json:"provider_id" yaml:"providerId"`
	Model              string            `json:"model,omitempty" yaml:"model,omitempty"`
	FallbackProviderID string            `json:"fallback_provider_id,omitempty" yaml:"fallbackProviderId,omitempty"`
	Parameters         map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

type RoutingRule struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	Priority    int         `json:"priority" yaml:"priority"`
	Conditions  []Condition `json:"conditions" yaml:"conditions"`
	Action      Action      `json:"action" yaml:"action"`
	CreatedAt   time.Time   `json:"created_at" yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"updatedAt,omitempty"`
}

// NewRoutingRule creates an enabled rule with a generated ID.
func NewRoutingRule(name string, priority int, action Action, conditions ...Condition) RoutingRule {
	now := time.Now().UTC()
	return RoutingRule{
		ID:         NewID("rule_"),
		Name:       name,
		Enabled:    true,
		Priority:   priority,
		Conditions: conditions,
		Action:     action,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsDefault reports whether the rule matches unconditionally.
func (r RoutingRule) IsDefault() bool {
	return len(r.Conditions) == 0
}

func (r RoutingRule) WithEnabled(enabled bool) RoutingRule {
	r.Enabled = enabled
	r.UpdatedAt = time.Now().UTC()
	return r
}

func (r RoutingRule) WithPriority(priority int) RoutingRule {
	r.Priority = priority
	r.UpdatedAt = time.Now().UTC()
	return r
}

// Clone returns a deep copy so snapshots never share slices or maps.
func (r RoutingRule) Clone() RoutingRule {
	out := r
	if r.Conditions != nil {
		out.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			if c.Value.Set != nil {
				c.Value.Set = append([]string(nil), c.Value.Set...)
			}
			out.Conditions[i] = c
		}
	}
	if r.Action.Parameters != nil {
		params := make(map[string]string, len(r.Action.Parameters))
		for k, v := range r.Action.Parameters {
			params[k] = v
		}
		out.Action.Parameters = params
	}
	return out
}

// Validate checks the rule's structural invariants.
func (r RoutingRule) Validate() error {
	var errs []string
	if r.ID == "" {
		errs = append(errs, "id is required")
	}
	if r.Action.ProviderID == "" {
		errs = append(errs, "action.provider_id is required")
	}
	if r.Action.FallbackProviderID != "" && r.Action.FallbackProviderID == r.Action.ProviderID {
		errs = append(errs, "action.fallback_provider_id must differ from action.provider_id")
	}
	for i, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("conditions[%d]: %v", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidRule, r.ID, strings.Join(errs, "; "))
	}
	return nil
}
