package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/inbound"
)

// Route selects the provider for reqCtx. It is a pure function: enabled rules
// are ordered by ascending priority (ties keep input order) and the first rule
// whose conditions all hold wins. A rule without conditions always matches.
// Malformed conditions never match and are reported in the decision's Faults.
func Route(reqCtx model.RequestContext, rules []model.RoutingRule) model.RoutingDecision {
	candidates := make([]model.RoutingRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	var faults []model.ConditionFault
	for _, r := range candidates {
		matched, ruleFaults := matchRule(r, reqCtx)
		faults = append(faults, ruleFaults...)
		if matched {
			d := model.DecisionFromRule(r)
			d.Faults = faults
			return d
		}
	}

	d := model.SystemDefaultDecision()
	d.Faults = faults
	return d
}

func matchRule(r model.RoutingRule, reqCtx model.RequestContext) (bool, []model.ConditionFault) {
	var faults []model.ConditionFault
	for i, c := range r.Conditions {
		ok, err := EvaluateCondition(c, reqCtx)
		if err != nil {
			faults = append(faults, model.ConditionFault{RuleID: r.ID, Condition: i, Message: err.Error()})
			return false, faults
		}
		if !ok {
			return false, faults
		}
	}
	return true, faults
}

// RuleSource provides a consistent snapshot of the current rule set.
type RuleSource interface {
	Snapshot() []model.RoutingRule
}

// Router routes requests against the live rule set.
type Router struct {
	rules  RuleSource
	logger *slog.Logger
}

var _ inbound.RoutingPort = (*Router)(nil)

func NewRouter(rules RuleSource, logger *slog.Logger) *Router {
	return &Router{rules: rules, logger: logger}
}

func (r *Router) Route(ctx context.Context, reqCtx model.RequestContext) model.RoutingDecision {
	decision := Route(reqCtx, r.rules.Snapshot())
	for _, f := range decision.Faults {
		r.logger.WarnContext(ctx, "malformed routing condition treated as non-matching",
			"rule_id", f.RuleID,
			"condition", f.Condition,
			"error", f.Message,
		)
	}
	r.logger.DebugContext(ctx, "request routed",
		"provider", decision.ProviderID,
		"model", decision.Model,
		"rule_id", decision.MatchedRuleID,
		"default", decision.Default,
	)
	return decision
}
