package remediation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/inbound"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
	"github.com/jonny/switchyard/internal/domain/service"
)

// RoutingRules repairs the rule set in place:
//   - a missing default rule is re-enabled, or created with fallback as its action
//   - fallbacks to unknown providers are cleared
//   - enabled rules routed to unknown providers are disabled
//
// The problem counts as fixed when the routing rules check passes afterwards.
func RoutingRules(rules inbound.RulePort, source service.RuleSource, known map[string]bool, fallback model.Action) Func {
	return func(ctx context.Context, _ model.Problem) (bool, error) {
		var errs []error
		for _, r := range rules.List() {
			changed := false
			if len(known) > 0 {
				if fb := r.Action.FallbackProviderID; fb != "" && !known[fb] {
					r.Action.FallbackProviderID = ""
					changed = true
				}
				if r.Enabled && !known[r.Action.ProviderID] {
					r = r.WithEnabled(false)
					changed = true
				}
			}
			if !changed {
				continue
			}
			if _, err := rules.Update(ctx, r); err != nil {
				errs = append(errs, err)
			}
		}
		if err := ensureDefault(ctx, rules, fallback); err != nil {
			errs = append(errs, err)
		}
		if err := errors.Join(errs...); err != nil {
			return false, err
		}

		outcome, err := service.RoutingRulesCheck(source, known).Run(ctx)
		if err != nil {
			return false, err
		}
		return outcome.Status == model.CheckOK, nil
	}
}

func ensureDefault(ctx context.Context, rules inbound.RulePort, fallback model.Action) error {
	var disabled []model.RoutingRule
	for _, r := range rules.List() {
		if !r.IsDefault() {
			continue
		}
		if r.Enabled {
			return nil
		}
		disabled = append(disabled, r)
	}
	if len(disabled) > 0 {
		sort.SliceStable(disabled, func(i, j int) bool { return disabled[i].Priority > disabled[j].Priority })
		_, err := rules.Update(ctx, disabled[0].WithEnabled(true))
		return err
	}
	if fallback.ProviderID == "" {
		fallback = model.Action{ProviderID: model.DefaultProviderID, Model: model.DefaultModel}
	}
	rule := model.NewRoutingRule("restored-default", 0, fallback)
	rule.Description = "restored by auto-fix"
	_, err := rules.Create(ctx, rule)
	return err
}

// Reprobe re-runs the provider's health probe, succeeding when it answers
// with a non-error status within slow.
func Reprobe(prober outbound.ProviderProber, providerID string, slow time.Duration) Func {
	return func(ctx context.Context, _ model.Problem) (bool, error) {
		res, err := prober.Probe(ctx, providerID)
		if err != nil {
			return false, fmt.Errorf("reprobe %s: %w", providerID, err)
		}
		return res.StatusCode < 400 && (slow <= 0 || res.Latency <= slow), nil
	}
}

// RestartDeployment rolls the provider's deployment and then waits up to
// settle for it to report ready. A zero settle only requests the restart.
func RestartDeployment(ctl outbound.WorkloadController, namespace, name string, settle, poll time.Duration) Func {
	return func(ctx context.Context, _ model.Problem) (bool, error) {
		if err := ctl.RestartDeployment(ctx, namespace, name); err != nil {
			return false, err
		}
		if settle <= 0 {
			return true, nil
		}
		if poll <= 0 {
			poll = 2 * time.Second
		}
		deadline := time.NewTimer(settle)
		defer deadline.Stop()
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-deadline.C:
				return false, nil
			case <-ticker.C:
				st, err := ctl.DeploymentStatus(ctx, namespace, name)
				if err != nil {
					return false, err
				}
				if st.Ready() && st.UpdatedReplicas >= st.DesiredReplicas {
					return true, nil
				}
			}
		}
	}
}

// Chain runs remediations in order and stops at the first that fixes the problem.
func Chain(fns ...Func) Func {
	return func(ctx context.Context, p model.Problem) (bool, error) {
		var errs []string
		for _, fn := range fns {
			fixed, err := fn(ctx, p)
			if fixed {
				return true, nil
			}
			if err != nil {
				errs = append(errs, err.Error())
			}
		}
		if len(errs) > 0 {
			return false, errors.New(strings.Join(errs, "; "))
		}
		return false, nil
	}
}
