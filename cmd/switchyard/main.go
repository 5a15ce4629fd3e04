package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	k8s "k8s.io/client-go/kubernetes"

	"github.com/jonny/switchyard/internal/adapter/inbound/httpapi"
	"github.com/jonny/switchyard/internal/adapter/inbound/rulefile"
	"github.com/jonny/switchyard/internal/adapter/inbound/slackbot"
	"github.com/jonny/switchyard/internal/adapter/outbound/kubernetes"
	"github.com/jonny/switchyard/internal/adapter/outbound/notification"
	slacknotifier "github.com/jonny/switchyard/internal/adapter/outbound/notification/slack"
	"github.com/jonny/switchyard/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/switchyard/internal/adapter/outbound/provider"
	"github.com/jonny/switchyard/internal/config"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
	"github.com/jonny/switchyard/internal/domain/service"
	"github.com/jonny/switchyard/pkg/health"
	"github.com/jonny/switchyard/pkg/version"
)

// reportingNotifier delivers repair notifications and diagnostics reports.
type reportingNotifier interface {
	outbound.Notifier
	outbound.DiagnosticsReporter
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = buildLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	store, err := sqlite.NewStore(sqlite.Config{
		Path:              cfg.Database.SQLite.Path,
		MaxOpenConns:      cfg.Database.SQLite.MaxOpenConns,
		PragmaJournalMode: cfg.Database.SQLite.PragmaJournalMode,
		PragmaBusyTimeout: cfg.Database.SQLite.PragmaBusyTimeout,
	})
	if err != nil {
		logger.Error("failed to open sqlite store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ruleRepo := sqlite.NewRuleRepo(store)
	repairRepo := sqlite.NewRepairRepo(store)

	// --- Routing rules ---
	rules := service.NewRuleStore(ruleRepo, logger)
	if err := rules.Load(ctx); err != nil {
		logger.Error("failed to load routing rules", "error", err)
		os.Exit(1)
	}

	var watcher *rulefile.Watcher
	if cfg.Routing.RulesFile != "" {
		watcher = rulefile.NewWatcher(cfg.Routing.RulesFile, rules, cfg.Routing.ReloadDebounce, logger)
		if !cfg.Routing.WatchRulesFile {
			if err := watcher.Apply(ctx); err != nil {
				logger.Error("failed to apply rules file", "path", cfg.Routing.RulesFile, "error", err)
				os.Exit(1)
			}
		}
	}

	// --- Providers & resilience ---
	endpoints := make(map[string]provider.Endpoint, len(cfg.Providers))
	for id, p := range cfg.Providers {
		endpoints[id] = provider.Endpoint{
			BaseURL:    p.Endpoint,
			APIKey:     p.APIKey,
			HealthPath: p.HealthPath,
			InvokePath: p.InvokePath,
		}
	}
	providers := provider.NewClient(endpoints, cfg.Routing.ProviderTimeout)

	monitor := service.NewMonitor(cfg.Diagnostics.MonitorCapacity)
	retrier := service.NewRetrier(logger, service.WithMonitor(monitor))
	router := service.NewRouter(rules, logger)
	dispatcher := service.NewDispatcher(router, providers, retrier, cfg.Retry, logger)

	// --- Kubernetes ---
	var (
		clientset k8s.Interface
		workloads outbound.WorkloadController
		guard     = kubernetes.NewNamespaceGuard(cfg.Kubernetes.BlockedNamespaces)
	)
	if cfg.Kubernetes.Enabled {
		clientset, err = kubernetes.NewClientset(kubernetes.ClientConfig{
			InCluster:  cfg.Kubernetes.InCluster,
			Kubeconfig: cfg.Kubernetes.Kubeconfig,
			QPS:        cfg.Kubernetes.QPS,
			Burst:      cfg.Kubernetes.Burst,
		})
		if err != nil {
			if cfg.Repair.CheckpointBackend == config.CheckpointKubernetes {
				logger.Error("kubernetes checkpoint backend needs a clientset", "error", err)
				os.Exit(1)
			}
			logger.Warn("kubernetes clientset unavailable; deployment checks will report the cluster unreachable", "error", err)
			workloads = kubernetes.NoopController{}
		} else {
			workloads = kubernetes.NewController(clientset, guard, logger)
		}
	} else {
		logger.Info("kubernetes integration disabled")
	}

	// --- Notifier ---
	var notifier reportingNotifier = notification.NewNoopNotifier(logger)
	if cfg.Slack.Enabled {
		notifier = slacknotifier.NewNotifier(slacknotifier.Config{
			BotToken:       cfg.Slack.BotToken,
			DefaultChannel: cfg.Slack.DefaultChannel,
		})
	}

	// --- Diagnostics ---
	engine := service.NewEngine(service.EngineConfig{
		CheckTimeout: cfg.Diagnostics.CheckTimeout,
		Concurrency:  cfg.Diagnostics.Concurrency,
		HistorySize:  cfg.Diagnostics.HistorySize,
		Synthetic: service.SyntheticPadding{
			Enabled:     cfg.Diagnostics.SyntheticPadding.Enabled,
			MinProblems: cfg.Diagnostics.SyntheticPadding.MinProblems,
		},
	}, logger, buildChecks(cfg, rules, monitor, providers, workloads)...)
	engine.SetReporter(notifier)

	// --- Auto-fix ---
	estimate := service.EstimateDecision(cfg.Repair.EstimateCutoff)
	registry := buildRemediations(cfg, rules, providers, workloads, logger)
	registry.SetFallback(estimate)
	fixer := service.SyntheticAware{Real: registry, Synthetic: estimate}

	var checkpoints outbound.Checkpointer
	switch cfg.Repair.CheckpointBackend {
	case config.CheckpointKubernetes:
		checkpoints = kubernetes.NewConfigMapCheckpointer(clientset, rules, guard, kubernetes.ConfigMapConfig{
			Namespace: cfg.Kubernetes.Namespace,
			Name:      cfg.Kubernetes.CheckpointConfigMap,
			Limit:     cfg.Repair.CheckpointLimit,
		}, logger)
	default:
		checkpoints = service.NewRuleCheckpointer(rules, cfg.Repair.CheckpointLimit, logger)
	}

	orchestrator := service.NewOrchestrator(fixer, checkpoints, notifier, repairRepo, logger)
	ops := service.NewOperations(engine, orchestrator, repairRepo, cfg.Repair.Strategy, logger)

	// --- Admin API ---
	rateLimit := 0
	if cfg.Server.RateLimit.Enabled {
		rateLimit = cfg.Server.RateLimit.RequestsPerMinute
	}
	apiServer := httpapi.NewServer(httpapi.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		AdminToken:   cfg.Server.AdminToken,
		RateLimit:    rateLimit,
		TrustProxy:   cfg.Server.TrustProxy,
		MaxBody:      cfg.Server.MaxBodyBytes,
	}, httpapi.NewHandler(rules, router, ops, dispatcher, logger), logger)

	// --- Health checker ---
	checker := health.NewChecker().WithVersion(version.Version)
	checker.Register("database", store.Ping)
	if workloads != nil {
		checker.Register("kubernetes", workloads.HealthCheck)
	}

	// --- Startup ---
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return apiServer.Start(gCtx)
	})

	if cfg.Server.MetricsPort > 0 {
		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Server.MetricsPort)
			return serve(gCtx, &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
				Handler:           checker.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}, cfg.Server.ShutdownTimeout)
		})
	}

	g.Go(func() error {
		return ops.Schedule(gCtx, cfg.Diagnostics.Interval, cfg.Repair.AutoRun)
	})

	if watcher != nil && cfg.Routing.WatchRulesFile {
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	if cfg.Slack.Enabled && cfg.Slack.Interactive {
		g.Go(func() error {
			logger.Info("starting slack bot")
			bot := slackbot.NewBot(slackbot.Config{
				BotToken: cfg.Slack.BotToken,
				AppToken: cfg.Slack.AppToken,
				Command:  cfg.Slack.Command,
			}, ops, logger)
			return bot.Start(gCtx)
		})
	} else {
		logger.Info("slack bot disabled")
	}

	logger.Info("switchyard started",
		"version", version.String(),
		"providers", len(cfg.Providers),
		"rules", len(rules.List()),
		"checkpoint_backend", cfg.Repair.CheckpointBackend,
	)

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("switchyard stopped")
}

// serve runs srv until ctx is cancelled, then shuts it down within timeout.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildLogger constructs a slog.Logger based on config.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}
