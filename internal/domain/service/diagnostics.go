package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
	"github.com/jonny/switchyard/pkg/ring"
)

// SyntheticPadding tops up the problem list with catalog entries when real
// checks find fewer than MinProblems. Padded problems carry SourceSynthetic.
type SyntheticPadding struct {
	Enabled     bool
	MinProblems int
}

type EngineConfig struct {
	CheckTimeout time.Duration
	Concurrency  int
	HistorySize  int
	Synthetic    SyntheticPadding
}

// defaultFixRate is the a-priori fix estimate per severity when a check
// gives no hint.
var defaultFixRate = map[model.Severity]int{
	model.SeverityLow:      90,
	model.SeverityMedium:   75,
	model.SeverityHigh:     60,
	model.SeverityCritical: 40,
}

type syntheticEntry struct {
	typ         model.ProblemType
	name        string
	description string
	severity    model.Severity
	fixRate     int
}

var syntheticCatalog = []syntheticEntry{
	{model.ProblemAPIConnectivity, "synthetic.api_latency_spike", "Simulated latency spike on provider endpoints", model.SeverityMedium, 85},
	{model.ProblemConfiguration, "synthetic.stale_cached_config", "Simulated stale cached routing configuration", model.SeverityLow, 95},
	{model.ProblemPerformance, "synthetic.memory_pressure", "Simulated memory pressure in the request path", model.SeverityMedium, 70},
	{model.ProblemSecurity, "synthetic.expiring_token", "Simulated provider token nearing expiry", model.SeverityHigh, 60},
}

// Engine runs the registered diagnostic checks and scores the results.
type Engine struct {
	mu       sync.RWMutex
	checks   []outbound.DiagnosticCheck
	cfg      EngineConfig
	running  atomic.Bool
	history  *ring.Buffer[model.DiagnosticsResult]
	reporter outbound.DiagnosticsReporter
	logger   *slog.Logger
}

func NewEngine(cfg EngineConfig, logger *slog.Logger, checks ...outbound.DiagnosticCheck) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.HistorySize < 1 {
		cfg.HistorySize = 10
	}
	return &Engine{
		checks:  checks,
		cfg:     cfg,
		history: ring.New[model.DiagnosticsResult](cfg.HistorySize),
		logger:  logger,
	}
}

// Register adds checks; they take part from the next run on.
func (e *Engine) Register(checks ...outbound.DiagnosticCheck) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checks = append(e.checks, checks...)
}

// SetReporter publishes every finished run. Reporter errors are logged.
func (e *Engine) SetReporter(r outbound.DiagnosticsReporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reporter = r
}

func (e *Engine) Running() bool {
	return e.running.Load()
}

func (e *Engine) Latest() (model.DiagnosticsResult, bool) {
	return e.history.Last()
}

// History returns retained results, oldest first.
func (e *Engine) History() []model.DiagnosticsResult {
	return e.history.Snapshot()
}

// Run executes every check concurrently and returns the scored result.
// Only one run may be active at a time.
func (e *Engine) Run(ctx context.Context) (model.DiagnosticsResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return model.DiagnosticsResult{}, model.ErrDiagnosticsInProgress
	}
	defer e.running.Store(false)

	e.mu.RLock()
	checks := make([]outbound.DiagnosticCheck, len(e.checks))
	copy(checks, e.checks)
	reporter := e.reporter
	e.mu.RUnlock()

	result := model.DiagnosticsResult{
		ID:        model.NewID("diag_"),
		StartedAt: time.Now().UTC(),
	}
	for _, t := range model.ProblemTypes {
		result.Category(t).Category = t
	}

	outcomes := make([]model.CheckOutcome, len(checks))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, c := range checks {
		g.Go(func() error {
			outcomes[i] = e.runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	sums := make(map[model.ProblemType]float64, len(model.ProblemTypes))
	for i, c := range checks {
		cat := result.Category(c.Category())
		if cat == nil {
			e.logger.Warn("diagnostic check has unknown category; skipped", "check", c.Name(), "category", c.Category())
			continue
		}
		o := outcomes[i]
		score := o.Status.DefaultScore()
		if o.Score != nil {
			score = clampScore(*o.Score)
		}
		cat.Details = append(cat.Details, model.CheckDetail{
			Name:      c.Name(),
			Status:    o.Status,
			Message:   o.Message,
			Component: o.Component,
			Score:     score,
		})
		sums[c.Category()] += score

		if o.Status == model.CheckOK {
			continue
		}
		severity := SeverityFor(c.Category(), o.Status)
		rate := defaultFixRate[severity]
		if o.FixSuccessRate != nil {
			rate = *o.FixSuccessRate
		}
		p := model.NewProblem(c.Category(), c.Name(), o.Message, severity, rate).WithComponent(c.Name(), o.Component)
		result.Problems = append(result.Problems, p)
	}

	for _, t := range model.ProblemTypes {
		cat := result.Category(t)
		if len(cat.Details) == 0 {
			cat.Score = 100
			continue
		}
		cat.Score = sums[t] / float64(len(cat.Details))
	}
	result.OverallScore = model.OverallScore(
		result.APIConnectivity.Score,
		result.ConfigurationIssues.Score,
		result.PerformanceMetrics.Score,
		result.SecurityIssues.Score,
	)

	if e.cfg.Synthetic.Enabled {
		result.Problems = padSynthetic(result.Problems, e.cfg.Synthetic.MinProblems)
	}
	result.FinishedAt = time.Now().UTC()
	e.history.Push(result)

	e.logger.Info("diagnostics run completed",
		"id", result.ID,
		"checks", len(checks),
		"overall_score", result.OverallScore,
		"problems", len(result.Problems),
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)

	if reporter != nil {
		if err := reporter.ReportDiagnostics(ctx, result); err != nil {
			e.logger.Error("failed to report diagnostics", "id", result.ID, "error", err)
		}
	}
	return result, nil
}

func (e *Engine) runCheck(ctx context.Context, c outbound.DiagnosticCheck) (out model.CheckOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = model.CheckOutcome{Status: model.CheckError, Message: fmt.Sprintf("check panicked: %v", r)}
		}
	}()

	if e.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CheckTimeout)
		defer cancel()
	}
	o, err := c.Run(ctx)
	if err != nil {
		msg := err.Error()
		if ctx.Err() != nil {
			msg = fmt.Sprintf("check did not complete: %v", err)
		}
		return model.CheckOutcome{Status: model.CheckError, Message: msg, Component: o.Component}
	}
	switch o.Status {
	case model.CheckOK, model.CheckWarning, model.CheckError:
	default:
		o.Status = model.CheckError
		o.Message = fmt.Sprintf("check reported unknown status; %s", o.Message)
	}
	return o
}

// SeverityFor derives problem severity from a check's category and status.
// Errors are high (critical for security); warnings are medium (low for
// performance).
func SeverityFor(category model.ProblemType, status model.CheckStatus) model.Severity {
	switch status {
	case model.CheckError:
		if category == model.ProblemSecurity {
			return model.SeverityCritical
		}
		return model.SeverityHigh
	case model.CheckWarning:
		if category == model.ProblemPerformance {
			return model.SeverityLow
		}
		return model.SeverityMedium
	}
	return model.SeverityLow
}

func padSynthetic(problems []model.Problem, minProblems int) []model.Problem {
	for i := 0; len(problems) < minProblems; i++ {
		entry := syntheticCatalog[i%len(syntheticCatalog)]
		p := model.NewProblem(entry.typ, entry.name, entry.description, entry.severity, entry.fixRate).
			WithSource(model.SourceSynthetic)
		problems = append(problems, p)
	}
	return problems
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
