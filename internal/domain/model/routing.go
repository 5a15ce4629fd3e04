package model

import "fmt"

// System default used when no routing rule matches.
const (
	DefaultProviderID = "openai"
	DefaultModel      = "gpt-4o-mini"
	DefaultReason     = "no routing rule matched; using system default provider"
)

// RequestContext is the attribute bag a caller builds from an inbound request.
// Values may be strings, any numeric kind, bools, []string or []any.
type RequestContext map[string]any

// Lookup returns the value stored under field.
func (c RequestContext) Lookup(field string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[field]
	return v, ok
}

// ConditionFault records a malformed condition that was treated as
// non-matching during routing.
type ConditionFault struct {
	RuleID    string `json:"rule_id"`
	Condition int    `json:"condition"`
	Message   string `json:"message"`
}

type RoutingDecision struct {
	ProviderID         string            `json:"provider_id"`
	Model              string            `json:"model,omitempty"`
	FallbackProviderID string            `json:"fallback_provider_id,omitempty"`
	Parameters         map[string]string `json:"parameters,omitempty"`
	MatchedRuleID      string            `json:"matched_rule_id,omitempty"`
	MatchedRuleName    string            `json:"matched_rule_name,omitempty"`
	Reason             string            `json:"reason"`
	Default            bool              `json:"default"`
	Faults             []ConditionFault  `json:"faults,omitempty"`
}

// DecisionFromRule builds the decision for a matching rule. The decision
// owns its Parameters; r may belong to a shared snapshot.
func DecisionFromRule(r RoutingRule) RoutingDecision {
	var params map[string]string
	if r.Action.Parameters != nil {
		params = make(map[string]string, len(r.Action.Parameters))
		for k, v := range r.Action.Parameters {
			params[k] = v
		}
	}
	return RoutingDecision{
		ProviderID:         r.Action.ProviderID,
		Model:              r.Action.Model,
		FallbackProviderID: r.Action.FallbackProviderID,
		Parameters:         params,
		MatchedRuleID:      r.ID,
		MatchedRuleName:    r.Name,
		Reason:             fmt.Sprintf("matched rule %s (%s)", r.ID, r.Name),
	}
}

// SystemDefaultDecision is returned when no enabled rule matches.
func SystemDefaultDecision() RoutingDecision {
	return RoutingDecision{
		ProviderID: DefaultProviderID,
		Model:      DefaultModel,
		Reason:     DefaultReason,
		Default:    true,
	}
}

// HasFallback reports whether a distinct fallback provider is configured.
func (d RoutingDecision) HasFallback() bool {
	return d.FallbackProviderID != "" && d.FallbackProviderID != d.ProviderID
}
