package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonny/switchyard/internal/domain/model"
)

type Config struct {
	Server      ServerConfig              `yaml:"server"`
	Logging     LoggingConfig             `yaml:"logging"`
	Database    DatabaseConfig            `yaml:"database"`
	Routing     RoutingConfig             `yaml:"routing"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Retry       model.RetryConfig         `yaml:"retry"`
	Diagnostics DiagnosticsConfig         `yaml:"diagnostics"`
	Repair      RepairConfig              `yaml:"repair"`
	Slack       SlackConfig               `yaml:"slack"`
	Kubernetes  KubernetesConfig          `yaml:"kubernetes"`
}

type ServerConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	MetricsPort     int             `yaml:"metricsPort"`
	AdminToken      string          `yaml:"adminToken"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	TrustProxy      bool            `yaml:"trustProxy"`
	MaxBodyBytes    int64           `yaml:"maxBodyBytes"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type DatabaseConfig struct {
	Driver string       `yaml:"driver"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path              string `yaml:"path"`
	MaxOpenConns      int    `yaml:"maxOpenConns"`
	PragmaJournalMode string `yaml:"pragmaJournalMode"`
	PragmaBusyTimeout int    `yaml:"pragmaBusyTimeout"`
}

type RoutingConfig struct {
	// RulesFile, when set, replaces the stored rules on startup.
	RulesFile      string        `yaml:"rulesFile"`
	WatchRulesFile bool          `yaml:"watchRulesFile"`
	ReloadDebounce time.Duration `yaml:"reloadDebounce"`
	// DefaultProvider and DefaultModel are used when auto-fix has to
	// recreate a missing default rule.
	DefaultProvider string        `yaml:"defaultProvider"`
	DefaultModel    string        `yaml:"defaultModel"`
	ProviderTimeout time.Duration `yaml:"providerTimeout"`
}

type ProviderConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"apiKey"`
	HealthPath string `yaml:"healthPath"`
	InvokePath string `yaml:"invokePath"`
	// Deployment names the in-cluster workload serving this provider, if any.
	Deployment string `yaml:"deployment"`
}

type DiagnosticsConfig struct {
	Interval        time.Duration   `yaml:"interval"`
	CheckTimeout    time.Duration   `yaml:"checkTimeout"`
	Concurrency     int             `yaml:"concurrency"`
	HistorySize     int             `yaml:"historySize"`
	MonitorCapacity int             `yaml:"monitorCapacity"`
	SlowResponse    time.Duration   `yaml:"slowResponse"`
	Latency         LatencyConfig   `yaml:"latency"`
	ErrorRate       ErrorRateConfig `yaml:"errorRate"`
	// SyntheticPadding tops up sparse results with simulated problems.
	SyntheticPadding SyntheticPaddingConfig `yaml:"syntheticPadding"`
}

type LatencyConfig struct {
	Warn       time.Duration `yaml:"warn"`
	Error      time.Duration `yaml:"error"`
	MinSamples int           `yaml:"minSamples"`
}

type ErrorRateConfig struct {
	WarnPercent  float64 `yaml:"warnPercent"`
	ErrorPercent float64 `yaml:"errorPercent"`
	MinSamples   int     `yaml:"minSamples"`
}

type SyntheticPaddingConfig struct {
	Enabled     bool `yaml:"enabled"`
	MinProblems int  `yaml:"minProblems"`
}

type RepairConfig struct {
	Strategy          model.RepairStrategy `yaml:"strategy"`
	CheckpointBackend string               `yaml:"checkpointBackend"`
	CheckpointLimit   int                  `yaml:"checkpointLimit"`
	// AutoRun starts a repair pass after each scheduled diagnostics run
	// that finds problems.
	AutoRun bool `yaml:"autoRun"`
	// EstimateCutoff decides problems without a real remediation: they count
	// as fixed when their estimated success rate reaches it.
	EstimateCutoff int           `yaml:"estimateCutoff"`
	RestartSettle  time.Duration `yaml:"restartSettle"`
	RestartPoll    time.Duration `yaml:"restartPoll"`
}

type SlackConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BotToken       string `yaml:"botToken"`
	AppToken       string `yaml:"appToken"`
	DefaultChannel string `yaml:"defaultChannel"`
	Command        string `yaml:"command"`
	// Interactive enables the socket-mode bot; notifications only need BotToken.
	Interactive bool `yaml:"interactive"`
}

type KubernetesConfig struct {
	Enabled             bool     `yaml:"enabled"`
	InCluster           bool     `yaml:"inCluster"`
	Kubeconfig          string   `yaml:"kubeconfig"`
	QPS                 float32  `yaml:"qps"`
	Burst               int      `yaml:"burst"`
	Namespace           string   `yaml:"namespace"`
	CheckpointConfigMap string   `yaml:"checkpointConfigMap"`
	BlockedNamespaces   []string `yaml:"blockedNamespaces"`
}

const (
	CheckpointRules      = "rules"
	CheckpointKubernetes = "kubernetes"
)

// Load reads a YAML config file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, overlays the document on the defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MetricsPort:     9090,
			RateLimit:       RateLimitConfig{Enabled: true, RequestsPerMinute: 120},
			MaxBodyBytes:    1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:              "/data/switchyard.db",
				MaxOpenConns:      1,
				PragmaJournalMode: "wal",
				PragmaBusyTimeout: 5000,
			},
		},
		Routing: RoutingConfig{
			ReloadDebounce:  500 * time.Millisecond,
			ProviderTimeout: 60 * time.Second,
		},
		Providers: map[string]ProviderConfig{},
		Retry:     model.DefaultRetryConfig(),
		Diagnostics: DiagnosticsConfig{
			Interval:        5 * time.Minute,
			CheckTimeout:    10 * time.Second,
			Concurrency:     4,
			HistorySize:     20,
			MonitorCapacity: 200,
			SlowResponse:    2 * time.Second,
			Latency:         LatencyConfig{Warn: 2 * time.Second, Error: 5 * time.Second, MinSamples: 10},
			ErrorRate:       ErrorRateConfig{WarnPercent: 5, ErrorPercent: 20, MinSamples: 10},
		},
		Repair: RepairConfig{
			Strategy:          model.DefaultRepairStrategy(),
			CheckpointBackend: CheckpointRules,
			CheckpointLimit:   20,
			EstimateCutoff:    50,
			RestartSettle:     2 * time.Minute,
			RestartPoll:       5 * time.Second,
		},
		Slack: SlackConfig{
			DefaultChannel: "#switchyard",
			Command:        "/switchyard",
		},
		Kubernetes: KubernetesConfig{
			InCluster:           true,
			Namespace:           "default",
			CheckpointConfigMap: "switchyard-checkpoints",
			BlockedNamespaces:   []string{"kube-system", "kube-public", "kube-node-lease"},
		},
	}
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}

// KnownProviders returns the set of configured provider IDs.
func (c *Config) KnownProviders() map[string]bool {
	known := make(map[string]bool, len(c.Providers))
	for id := range c.Providers {
		known[id] = true
	}
	return known
}
