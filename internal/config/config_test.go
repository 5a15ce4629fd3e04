package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected server.port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 9090 {
		t.Errorf("expected server.metricsPort 9090, got %d", cfg.Server.MetricsPort)
	}
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMinute != 120 {
		t.Errorf("expected rate limit 120/min, got %+v", cfg.Server.RateLimit)
	}

	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialDelay != time.Second || cfg.Retry.MaxDelay != 30*time.Second {
		t.Errorf("unexpected retry defaults %+v", cfg.Retry)
	}

	if cfg.Diagnostics.Interval != 5*time.Minute {
		t.Errorf("expected diagnostics.interval 5m, got %v", cfg.Diagnostics.Interval)
	}
	if cfg.Diagnostics.SyntheticPadding.Enabled {
		t.Error("expected synthetic padding off by default")
	}

	if cfg.Repair.CheckpointBackend != CheckpointRules {
		t.Errorf("expected rules checkpoint backend, got %q", cfg.Repair.CheckpointBackend)
	}
	if cfg.Repair.Strategy.RollbackOnFailureThreshold != 30 || cfg.Repair.Strategy.FixTimeoutSeconds != 30 {
		t.Errorf("unexpected strategy defaults %+v", cfg.Repair.Strategy)
	}
	if cfg.Repair.AutoRun {
		t.Error("expected repair.autoRun false")
	}

	if cfg.Slack.Enabled || cfg.Kubernetes.Enabled {
		t.Error("expected slack and kubernetes disabled by default")
	}
	if len(cfg.Kubernetes.BlockedNamespaces) != 3 {
		t.Errorf("expected 3 blocked namespaces, got %d", len(cfg.Kubernetes.BlockedNamespaces))
	}

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoad(t *testing.T) {
	yaml := `
server:
  port: 9000
  metricsPort: 9091
  adminToken: s3cret
providers:
  openai:
    endpoint: "https://api.openai.com"
    apiKey: sk-test
  local:
    endpoint: "http://localhost:11434"
    healthPath: /api/tags
    deployment: ollama
retry:
  maxRetries: 5
  initialDelay: 500ms
  maxDelay: 10s
  backoffFactor: 1.5
  retryableErrorTypes: [rate_limit, timeout]
diagnostics:
  interval: 1m
  syntheticPadding:
    enabled: true
    minProblems: 3
repair:
  autoRun: true
  strategy:
    priorityOrder: fix_success_rate
    rollbackOnFailureThreshold: 50
    fixTimeout: 10
    enabledTypes:
      security: true
database:
  driver: sqlite
  sqlite:
    path: "/tmp/test.db"
`
	f := writeTempYAML(t, yaml)

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Server.AdminToken != "s3cret" {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if len(cfg.Providers) != 2 || cfg.Providers["local"].Deployment != "ollama" || cfg.Providers["openai"].APIKey != "sk-test" {
		t.Errorf("unexpected providers %+v", cfg.Providers)
	}
	if !cfg.KnownProviders()["openai"] || cfg.KnownProviders()["anthropic"] {
		t.Error("KnownProviders should reflect configured providers")
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.InitialDelay != 500*time.Millisecond || len(cfg.Retry.RetryableErrorTypes) != 2 {
		t.Errorf("unexpected retry config %+v", cfg.Retry)
	}
	if cfg.Diagnostics.Interval != time.Minute || cfg.Diagnostics.SyntheticPadding.MinProblems != 3 {
		t.Errorf("unexpected diagnostics config %+v", cfg.Diagnostics)
	}
	s := cfg.Repair.Strategy
	if s.PriorityOrder != model.OrderFixSuccessRate || s.RollbackOnFailureThreshold != 50 || s.FixTimeoutSeconds != 10 {
		t.Errorf("unexpected strategy %+v", s)
	}
	if !s.EnabledTypes[model.ProblemSecurity] || !s.EnabledTypes[model.ProblemConfiguration] {
		t.Errorf("expected enabledTypes merged over defaults, got %v", s.EnabledTypes)
	}
	if !cfg.Repair.AutoRun {
		t.Error("expected repair.autoRun true")
	}
	// Verify defaults still apply to unset fields
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected default readTimeout 30s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Repair.CheckpointLimit != 20 {
		t.Errorf("expected default checkpointLimit 20, got %d", cfg.Repair.CheckpointLimit)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	f := writeTempYAML(t, ":::invalid yaml:::")
	_, err := Load(f)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_TOKEN", "secret-token-123")
	t.Setenv("TEST_PORT", "9999")

	input := "token: ${TEST_TOKEN}\nport: ${TEST_PORT}\nmissing: ${MISSING_VAR}"
	result := expandEnvVars(input)

	if result != "token: secret-token-123\nport: 9999\nmissing: ${MISSING_VAR}" {
		t.Errorf("unexpected expansion result:\n%s", result)
	}
}

func TestExpandEnvVars_InLoad(t *testing.T) {
	t.Setenv("SWITCHYARD_OPENAI_KEY", "sk-from-env")

	yaml := `
providers:
  openai:
    endpoint: "https://api.openai.com"
    apiKey: "${SWITCHYARD_OPENAI_KEY}"
`
	cfg, err := Load(writeTempYAML(t, yaml))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := cfg.Providers["openai"].APIKey; got != "sk-from-env" {
		t.Errorf("expected env-expanded api key, got %q", got)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("expected default config to pass validation, got: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"metrics port clash", func(c *Config) { c.Server.MetricsPort = c.Server.Port }, "server.metricsPort must differ"},
		{"rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerMinute = 0 }, "requestsPerMinute"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"watch without file", func(c *Config) { c.Routing.WatchRulesFile = true }, "routing.rulesFile"},
		{"default provider", func(c *Config) {
			c.Providers["openai"] = ProviderConfig{Endpoint: "https://api.openai.com"}
			c.Routing.DefaultProvider = "anthropic"
		}, "routing.defaultProvider"},
		{"provider endpoint", func(c *Config) { c.Providers["x"] = ProviderConfig{} }, "providers.x.endpoint is required"},
		{"provider relative url", func(c *Config) { c.Providers["x"] = ProviderConfig{Endpoint: "api.example.com"} }, "absolute URL"},
		{"retry", func(c *Config) { c.Retry.BackoffFactor = 0.5 }, "backoffFactor"},
		{"concurrency", func(c *Config) { c.Diagnostics.Concurrency = 0 }, "diagnostics.concurrency"},
		{"padding", func(c *Config) { c.Diagnostics.SyntheticPadding.Enabled = true }, "minProblems"},
		{"strategy", func(c *Config) { c.Repair.Strategy.RollbackOnFailureThreshold = 150 }, "repair.strategy"},
		{"backend", func(c *Config) { c.Repair.CheckpointBackend = "s3" }, "checkpointBackend must be"},
		{"k8s backend disabled", func(c *Config) { c.Repair.CheckpointBackend = CheckpointKubernetes }, "requires kubernetes.enabled"},
		{"cutoff", func(c *Config) { c.Repair.EstimateCutoff = 101 }, "estimateCutoff"},
		{"slack bot token", func(c *Config) { c.Slack.Enabled = true }, "slack.botToken"},
		{"slack app token", func(c *Config) {
			c.Slack.Enabled, c.Slack.BotToken, c.Slack.Interactive = true, "xoxb-1", true
		}, "slack.appToken"},
		{"blocked namespace", func(c *Config) {
			c.Kubernetes.Enabled, c.Kubernetes.Namespace = true, "kube-system"
		}, "is in blockedNamespaces"},
		{"kubeconfig", func(c *Config) {
			c.Kubernetes.Enabled, c.Kubernetes.InCluster = true, false
		}, "kubernetes.kubeconfig"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"
	cfg.Repair.EstimateCutoff = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if n := strings.Count(err.Error(), "\n  - "); n != 3 {
		t.Errorf("expected 3 collected errors, got %d: %v", n, err)
	}
}

// writeTempYAML writes content to a temp file and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	f := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(f, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp yaml: %v", err)
	}
	return f
}
