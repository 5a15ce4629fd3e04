package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// Check names used by the built-in checks and matched by remediations.
const (
	CheckRoutingRules = "routing.rules"
	CheckRetryConfig  = "retry.config"
	CheckAdminAuth    = "admin.auth"
)

func ProviderCheckName(providerID, aspect string) string {
	return "provider." + providerID + "." + aspect
}

func DeploymentCheckName(name string) string {
	return "deployment." + name + ".ready"
}

// CheckFunc adapts a function to outbound.DiagnosticCheck.
type CheckFunc struct {
	name     string
	category model.ProblemType
	fn       func(ctx context.Context) (model.CheckOutcome, error)
}

var _ outbound.DiagnosticCheck = (*CheckFunc)(nil)

func NewCheck(name string, category model.ProblemType, fn func(ctx context.Context) (model.CheckOutcome, error)) *CheckFunc {
	return &CheckFunc{name: name, category: category, fn: fn}
}

func (c *CheckFunc) Name() string                { return c.name }
func (c *CheckFunc) Category() model.ProblemType { return c.category }

func (c *CheckFunc) Run(ctx context.Context) (model.CheckOutcome, error) {
	return c.fn(ctx)
}

func okOutcome(msg string) model.CheckOutcome {
	return model.CheckOutcome{Status: model.CheckOK, Message: msg}
}

// ReachabilityCheck probes a provider's health endpoint. Responses slower
// than slow are reported as a warning.
func ReachabilityCheck(prober outbound.ProviderProber, providerID string, slow time.Duration) *CheckFunc {
	return NewCheck(ProviderCheckName(providerID, "reachable"), model.ProblemAPIConnectivity, func(ctx context.Context) (model.CheckOutcome, error) {
		res, err := prober.Probe(ctx, providerID)
		if err != nil {
			d := Classify(err)
			return model.CheckOutcome{Status: model.CheckError, Message: fmt.Sprintf("probe failed (%s): %s", d.Type, d.Message), Component: providerID}, nil
		}
		if res.StatusCode >= 400 {
			return model.CheckOutcome{Status: model.CheckError, Message: fmt.Sprintf("health endpoint returned %d", res.StatusCode), Component: providerID}, nil
		}
		msg := fmt.Sprintf("responded %d in %s", res.StatusCode, res.Latency.Round(time.Millisecond))
		if slow > 0 && res.Latency > slow {
			return model.CheckOutcome{Status: model.CheckWarning, Message: msg, Component: providerID}, nil
		}
		return okOutcome(msg), nil
	})
}

// DeploymentReadyCheck reports whether a provider's deployment has all
// desired replicas ready.
func DeploymentReadyCheck(ctl outbound.WorkloadController, namespace, name string) *CheckFunc {
	return NewCheck(DeploymentCheckName(name), model.ProblemAPIConnectivity, func(ctx context.Context) (model.CheckOutcome, error) {
		st, err := ctl.DeploymentStatus(ctx, namespace, name)
		if err != nil {
			return model.CheckOutcome{}, fmt.Errorf("deployment %s/%s: %w", namespace, name, err)
		}
		msg := fmt.Sprintf("%d/%d replicas ready", st.ReadyReplicas, st.DesiredReplicas)
		component := namespace + "/" + name
		switch {
		case st.DesiredReplicas == 0:
			return model.CheckOutcome{Status: model.CheckWarning, Message: "deployment scaled to zero", Component: component}, nil
		case st.ReadyReplicas == 0:
			return model.CheckOutcome{Status: model.CheckError, Message: msg, Component: component}, nil
		case !st.Ready():
			return model.CheckOutcome{Status: model.CheckWarning, Message: msg, Component: component}, nil
		}
		return okOutcome(msg), nil
	})
}

// RoutingRulesCheck inspects the live rule set. known lists the configured
// provider IDs; an empty set disables the unknown-provider check.
func RoutingRulesCheck(rules RuleSource, known map[string]bool) *CheckFunc {
	return NewCheck(CheckRoutingRules, model.ProblemConfiguration, func(_ context.Context) (model.CheckOutcome, error) {
		snapshot := rules.Snapshot()
		var errs, warns []string

		enabled, defaults := 0, 0
		for _, r := range snapshot {
			if err := r.Validate(); err != nil {
				errs = append(errs, err.Error())
			}
			if !r.Enabled {
				continue
			}
			enabled++
			if r.IsDefault() {
				defaults++
			}
			if len(known) == 0 {
				continue
			}
			if !known[r.Action.ProviderID] {
				errs = append(errs, fmt.Sprintf("rule %s routes to unknown provider %q", r.ID, r.Action.ProviderID))
			}
			if fb := r.Action.FallbackProviderID; fb != "" && !known[fb] {
				errs = append(errs, fmt.Sprintf("rule %s falls back to unknown provider %q", r.ID, fb))
			}
		}

		switch {
		case enabled == 0:
			warns = append(warns, "no enabled routing rules; all traffic uses the system default provider")
		case defaults == 0:
			warns = append(warns, "no enabled default rule; unmatched requests use the system default provider")
		case defaults > 1:
			errs = append(errs, fmt.Sprintf("%d enabled default rules; only the first by priority is reachable", defaults))
		}

		switch {
		case len(errs) > 0:
			return model.CheckOutcome{Status: model.CheckError, Message: strings.Join(append(errs, warns...), "; "), Component: "routing"}, nil
		case len(warns) > 0:
			return model.CheckOutcome{Status: model.CheckWarning, Message: strings.Join(warns, "; "), Component: "routing"}, nil
		}
		return okOutcome(fmt.Sprintf("%d enabled routing rules", enabled)), nil
	})
}

// RetryConfigCheck validates the retry policy used for provider calls.
func RetryConfigCheck(cfg model.RetryConfig) *CheckFunc {
	return NewCheck(CheckRetryConfig, model.ProblemConfiguration, func(_ context.Context) (model.CheckOutcome, error) {
		if err := cfg.Validate(); err != nil {
			return model.CheckOutcome{Status: model.CheckError, Message: err.Error(), Component: "retry"}, nil
		}
		if cfg.MaxRetries == 0 {
			return model.CheckOutcome{Status: model.CheckWarning, Message: "retries disabled; transient provider failures surface immediately", Component: "retry"}, nil
		}
		return okOutcome(fmt.Sprintf("max %d retries, backoff %.1fx up to %s", cfg.MaxRetries, cfg.BackoffFactor, cfg.MaxDelay)), nil
	})
}

type LatencyThresholds struct {
	Warn       time.Duration
	Error      time.Duration
	MinSamples int
}

// LatencyCheck compares the provider's p95 call latency with thresholds.
func LatencyCheck(m *Monitor, providerID string, th LatencyThresholds) *CheckFunc {
	return NewCheck(ProviderCheckName(providerID, "latency"), model.ProblemPerformance, func(_ context.Context) (model.CheckOutcome, error) {
		stats := m.Stats(providerID)
		if stats.Samples < th.MinSamples || stats.Samples == 0 {
			return okOutcome(fmt.Sprintf("%d samples; not enough to judge latency", stats.Samples)), nil
		}
		msg := fmt.Sprintf("p95 latency %s over %d calls", stats.P95, stats.Samples)
		switch {
		case th.Error > 0 && stats.P95 > th.Error:
			return model.CheckOutcome{Status: model.CheckError, Message: msg, Component: providerID}, nil
		case th.Warn > 0 && stats.P95 > th.Warn:
			return model.CheckOutcome{Status: model.CheckWarning, Message: msg, Component: providerID}, nil
		}
		return okOutcome(msg), nil
	})
}

type ErrorRateThresholds struct {
	WarnPercent  float64
	ErrorPercent float64
	MinSamples   int
}

// ErrorRateCheck compares the provider's failed-attempt percentage with thresholds.
func ErrorRateCheck(m *Monitor, providerID string, th ErrorRateThresholds) *CheckFunc {
	return NewCheck(ProviderCheckName(providerID, "error_rate"), model.ProblemPerformance, func(_ context.Context) (model.CheckOutcome, error) {
		stats := m.Stats(providerID)
		if stats.Samples < th.MinSamples || stats.Samples == 0 {
			return okOutcome(fmt.Sprintf("%d samples; not enough to judge error rate", stats.Samples)), nil
		}
		msg := fmt.Sprintf("%.1f%% of %d calls failed", stats.ErrorRate, stats.Samples)
		score := 100 - stats.ErrorRate
		switch {
		case th.ErrorPercent > 0 && stats.ErrorRate > th.ErrorPercent:
			return model.CheckOutcome{Status: model.CheckError, Message: msg, Component: providerID, Score: &score}, nil
		case th.WarnPercent > 0 && stats.ErrorRate > th.WarnPercent:
			return model.CheckOutcome{Status: model.CheckWarning, Message: msg, Component: providerID, Score: &score}, nil
		}
		return model.CheckOutcome{Status: model.CheckOK, Message: msg, Score: &score}, nil
	})
}

// CredentialsCheck flags a provider without an API key or with a plain-text endpoint.
func CredentialsCheck(providerID, endpoint, apiKey string) *CheckFunc {
	return NewCheck(ProviderCheckName(providerID, "credentials"), model.ProblemSecurity, func(_ context.Context) (model.CheckOutcome, error) {
		if apiKey == "" {
			noFix := 0
			return model.CheckOutcome{Status: model.CheckError, Message: "no API key configured", Component: providerID, FixSuccessRate: &noFix}, nil
		}
		u, err := url.Parse(endpoint)
		if err != nil {
			return model.CheckOutcome{Status: model.CheckError, Message: fmt.Sprintf("invalid endpoint: %v", err), Component: providerID}, nil
		}
		if u.Scheme != "https" && !isLoopback(u.Hostname()) {
			return model.CheckOutcome{Status: model.CheckWarning, Message: fmt.Sprintf("endpoint %s does not use TLS", u.Redacted()), Component: providerID}, nil
		}
		return okOutcome("API key present and endpoint uses TLS"), nil
	})
}

// AdminAuthCheck warns when the admin API accepts unauthenticated requests.
func AdminAuthCheck(tokenConfigured bool) *CheckFunc {
	return NewCheck(CheckAdminAuth, model.ProblemSecurity, func(_ context.Context) (model.CheckOutcome, error) {
		if !tokenConfigured {
			return model.CheckOutcome{Status: model.CheckWarning, Message: "admin API has no bearer token configured", Component: "admin"}, nil
		}
		return okOutcome("admin API requires a bearer token"), nil
	})
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
