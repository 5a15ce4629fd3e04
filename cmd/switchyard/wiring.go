package main

import (
	"log/slog"
	"sort"

	"github.com/jonny/switchyard/internal/adapter/outbound/provider"
	"github.com/jonny/switchyard/internal/adapter/outbound/remediation"
	"github.com/jonny/switchyard/internal/config"
	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
	"github.com/jonny/switchyard/internal/domain/service"
)

func providerIDs(cfg *config.Config) []string {
	ids := make([]string, 0, len(cfg.Providers))
	for id := range cfg.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// buildChecks assembles the diagnostic checks. Deployment checks are only
// added when workloads is non-nil.
func buildChecks(cfg *config.Config, rules *service.RuleStore, monitor *service.Monitor, providers *provider.Client, workloads outbound.WorkloadController) []outbound.DiagnosticCheck {
	d := cfg.Diagnostics
	checks := []outbound.DiagnosticCheck{
		service.RoutingRulesCheck(rules, cfg.KnownProviders()),
		service.RetryConfigCheck(cfg.Retry),
		service.AdminAuthCheck(cfg.Server.AdminToken != ""),
	}
	for _, id := range providerIDs(cfg) {
		p := cfg.Providers[id]
		checks = append(checks,
			service.ReachabilityCheck(providers, id, d.SlowResponse),
			service.CredentialsCheck(id, p.Endpoint, p.APIKey),
			service.LatencyCheck(monitor, id, service.LatencyThresholds{
				Warn:       d.Latency.Warn,
				Error:      d.Latency.Error,
				MinSamples: d.Latency.MinSamples,
			}),
			service.ErrorRateCheck(monitor, id, service.ErrorRateThresholds{
				WarnPercent:  d.ErrorRate.WarnPercent,
				ErrorPercent: d.ErrorRate.ErrorPercent,
				MinSamples:   d.ErrorRate.MinSamples,
			}),
		)
		if workloads != nil && p.Deployment != "" {
			checks = append(checks, service.DeploymentReadyCheck(workloads, cfg.Kubernetes.Namespace, p.Deployment))
		}
	}
	return checks
}

// buildRemediations registers a remediation for every check that has one.
// A provider backed by a deployment gets a rollout restart after a failed
// re-probe.
func buildRemediations(cfg *config.Config, rules *service.RuleStore, providers *provider.Client, workloads outbound.WorkloadController, logger *slog.Logger) *remediation.Registry {
	registry := remediation.NewRegistry(logger)

	fallback := model.Action{ProviderID: cfg.Routing.DefaultProvider, Model: cfg.Routing.DefaultModel}
	registry.Register(service.CheckRoutingRules, remediation.RoutingRules(rules, rules, cfg.KnownProviders(), fallback))

	r := cfg.Repair
	for _, id := range providerIDs(cfg) {
		p := cfg.Providers[id]
		reprobe := remediation.Reprobe(providers, id, cfg.Diagnostics.SlowResponse)
		if workloads == nil || p.Deployment == "" {
			registry.Register(service.ProviderCheckName(id, "reachable"), reprobe)
			continue
		}
		restart := remediation.RestartDeployment(workloads, cfg.Kubernetes.Namespace, p.Deployment, r.RestartSettle, r.RestartPoll)
		registry.Register(service.ProviderCheckName(id, "reachable"), remediation.Chain(reprobe, restart))
		registry.Register(service.ProviderCheckName(id, "latency"), restart)
		registry.Register(service.ProviderCheckName(id, "error_rate"), restart)
		registry.Register(service.DeploymentCheckName(p.Deployment), restart)
	}
	return registry
}
