package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		errs = append(errs, "server.metricsPort must be between 0 and 65535")
	}
	if cfg.Server.MetricsPort != 0 && cfg.Server.MetricsPort == cfg.Server.Port {
		errs = append(errs, "server.metricsPort must differ from server.port")
	}
	if cfg.Server.RateLimit.Enabled && cfg.Server.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, "server.rateLimit.requestsPerMinute must be positive when rate limiting is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level must be debug, info, warn or error (got %q)", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, fmt.Sprintf("logging.format must be json or text (got %q)", cfg.Logging.Format))
	}

	if cfg.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Sprintf("database.driver must be sqlite (got %q)", cfg.Database.Driver))
	}
	if cfg.Database.SQLite.Path == "" {
		errs = append(errs, "database.sqlite.path is required")
	}

	if cfg.Routing.WatchRulesFile && cfg.Routing.RulesFile == "" {
		errs = append(errs, "routing.rulesFile is required when routing.watchRulesFile is set")
	}

	if p := cfg.Routing.DefaultProvider; p != "" && len(cfg.Providers) > 0 {
		if _, ok := cfg.Providers[p]; !ok {
			errs = append(errs, fmt.Sprintf("routing.defaultProvider %q is not a configured provider", p))
		}
	}

	ids := make([]string, 0, len(cfg.Providers))
	for id := range cfg.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := cfg.Providers[id]
		if p.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.endpoint is required", id))
			continue
		}
		if u, err := url.Parse(p.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.endpoint must be an absolute URL (got %q)", id, p.Endpoint))
		}
	}

	if err := cfg.Retry.Validate(); err != nil {
		errs = append(errs, "retry: "+err.Error())
	}

	if cfg.Diagnostics.Interval < 0 {
		errs = append(errs, "diagnostics.interval must be >= 0")
	}
	if cfg.Diagnostics.Concurrency < 1 {
		errs = append(errs, "diagnostics.concurrency must be at least 1")
	}
	if cfg.Diagnostics.MonitorCapacity < 1 {
		errs = append(errs, "diagnostics.monitorCapacity must be at least 1")
	}
	if cfg.Diagnostics.SyntheticPadding.Enabled && cfg.Diagnostics.SyntheticPadding.MinProblems < 1 {
		errs = append(errs, "diagnostics.syntheticPadding.minProblems must be at least 1 when padding is enabled")
	}

	if err := cfg.Repair.Strategy.Validate(); err != nil {
		errs = append(errs, "repair.strategy: "+err.Error())
	}
	switch cfg.Repair.CheckpointBackend {
	case CheckpointRules:
	case CheckpointKubernetes:
		if !cfg.Kubernetes.Enabled {
			errs = append(errs, "repair.checkpointBackend kubernetes requires kubernetes.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("repair.checkpointBackend must be rules or kubernetes (got %q)", cfg.Repair.CheckpointBackend))
	}
	if cfg.Repair.EstimateCutoff < 0 || cfg.Repair.EstimateCutoff > 100 {
		errs = append(errs, "repair.estimateCutoff must be between 0 and 100")
	}

	if cfg.Slack.Enabled {
		if cfg.Slack.BotToken == "" {
			errs = append(errs, "slack.botToken is required when slack is enabled")
		}
		if cfg.Slack.Interactive && cfg.Slack.AppToken == "" {
			errs = append(errs, "slack.appToken is required when slack.interactive is set")
		}
	}

	if cfg.Kubernetes.Enabled {
		if cfg.Kubernetes.Namespace == "" {
			errs = append(errs, "kubernetes.namespace is required when kubernetes is enabled")
		}
		if !cfg.Kubernetes.InCluster && cfg.Kubernetes.Kubeconfig == "" {
			errs = append(errs, "kubernetes.kubeconfig is required when not running in cluster")
		}
		for _, blocked := range cfg.Kubernetes.BlockedNamespaces {
			if strings.EqualFold(blocked, cfg.Kubernetes.Namespace) {
				errs = append(errs, fmt.Sprintf("kubernetes.namespace %q is in blockedNamespaces", cfg.Kubernetes.Namespace))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
