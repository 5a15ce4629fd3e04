package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

const sourceComponent = "auto-fix"

// Orchestrator runs repair passes over diagnosed problems. Passes are
// serialised: a Run issued while another is running is rejected.
type Orchestrator struct {
	fixer       outbound.FixExecutor
	checkpoints outbound.Checkpointer
	notifier    outbound.Notifier
	history     outbound.RepairHistoryRepository
	logger      *slog.Logger

	mu    sync.Mutex
	state model.RepairState
}

// NewOrchestrator creates an Orchestrator. history may be nil.
func NewOrchestrator(
	fixer outbound.FixExecutor,
	checkpoints outbound.Checkpointer,
	notifier outbound.Notifier,
	history outbound.RepairHistoryRepository,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		fixer:       fixer,
		checkpoints: checkpoints,
		notifier:    notifier,
		history:     history,
		logger:      logger,
		state:       model.RepairIdle,
	}
}

func (o *Orchestrator) State() model.RepairState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == model.RepairRunning {
		return false
	}
	o.state = model.RepairRunning
	return true
}

func (o *Orchestrator) finish(outcome model.RepairState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = outcome
}

// Run attempts a fix for every admitted problem, strictly one after another,
// and rolls back every checkpoint of the pass when the failure rate exceeds
// the strategy threshold.
func (o *Orchestrator) Run(ctx context.Context, problems []model.Problem, strategy model.RepairStrategy) (model.RepairSummary, error) {
	if err := strategy.Validate(); err != nil {
		return model.RepairSummary{}, err
	}
	if !o.begin() {
		return model.RepairSummary{}, model.ErrRepairPassInProgress
	}
	// A collaborator panic must not leave the orchestrator running.
	outcome := model.RepairIdle
	defer func() { o.finish(outcome) }()

	queue, skipped := OrderProblems(problems, strategy)
	summary := model.RepairSummary{
		PassID:       uuid.NewString(),
		SkippedCount: skipped,
		TotalCount:   len(queue),
		StartedAt:    time.Now().UTC(),
	}
	components := affectedComponents(queue)

	o.logger.Info("repair pass started", "pass_id", summary.PassID, "queued", len(queue), "skipped", skipped)
	o.notify(ctx, model.Notification{
		Title:              "Repair pass started",
		Message:            fmt.Sprintf("%d problems queued, %d skipped by strategy", len(queue), skipped),
		Level:              model.LevelInfo,
		RepairPassID:       summary.PassID,
		Status:             string(model.RepairRunning),
		AffectedComponents: components,
	})

	var checkpoints []model.Checkpoint
	for _, p := range queue {
		attempt, cp := o.fixOne(ctx, summary.PassID, p, strategy)
		if cp != nil {
			checkpoints = append(checkpoints, *cp)
		}
		summary.Attempts = append(summary.Attempts, attempt)
		summary.Problems = append(summary.Problems, p.WithStatus(attempt.Status))
		if attempt.Status == model.ProblemFixed {
			summary.FixedCount++
		} else {
			summary.FailedCount++
		}
	}

	summary.FailureRate = model.FailurePercent(summary.FailedCount, summary.TotalCount)
	summary.Outcome = model.RepairCompleted
	if summary.FailureRate > strategy.RollbackOnFailureThreshold {
		summary.Outcome = model.RepairRolledBack
		summary.RolledBack = true
		summary.RestoredCheckpoints = o.rollback(ctx, summary.PassID, checkpoints)
	}
	summary.FinishedAt = time.Now().UTC()

	o.logger.Info("repair pass finished",
		"pass_id", summary.PassID,
		"outcome", summary.Outcome,
		"fixed", summary.FixedCount,
		"failed", summary.FailedCount,
		"failure_rate", summary.FailureRate,
		"restored_checkpoints", summary.RestoredCheckpoints,
	)
	o.notify(ctx, completionNotification(summary, strategy, components))

	if o.history != nil {
		if err := o.history.Save(ctx, summary); err != nil {
			o.logger.Error("failed to save repair history", "pass_id", summary.PassID, "error", err)
		}
	}

	outcome = summary.Outcome
	return summary, nil
}

func (o *Orchestrator) fixOne(ctx context.Context, passID string, p model.Problem, strategy model.RepairStrategy) (model.FixAttempt, *model.Checkpoint) {
	attempt := model.FixAttempt{ProblemID: p.ID, ProblemName: p.Name}
	start := time.Now()

	o.notify(ctx, model.Notification{
		Title:              fmt.Sprintf("Fixing %s", p.Name),
		Message:            p.Description,
		Level:              model.LevelInfo,
		RepairPassID:       passID,
		Status:             "fixing",
		AffectedComponents: componentsOf(p),
	})

	var cp *model.Checkpoint
	if strategy.CreateBackupBeforeFix && o.checkpoints != nil {
		c, err := o.checkpoints.Create(ctx, p)
		if err != nil {
			attempt.Status = model.ProblemFailed
			attempt.Error = fmt.Sprintf("create checkpoint: %v", err)
			attempt.Duration = time.Since(start)
			o.logger.Error("checkpoint failed; fix not attempted", "pass_id", passID, "problem", p.Name, "error", err)
			o.notifyResult(ctx, passID, p, attempt)
			return attempt, nil
		}
		cp = &c
		attempt.CheckpointID = c.ID
	}

	fixed, timedOut, err := o.attempt(ctx, p, strategy.FixTimeout())
	attempt.Duration = time.Since(start)
	attempt.TimedOut = timedOut
	switch {
	case err != nil:
		attempt.Status = model.ProblemFailed
		attempt.Error = err.Error()
	case fixed:
		attempt.Status = model.ProblemFixed
	default:
		attempt.Status = model.ProblemFailed
		attempt.Error = "fix did not resolve the problem"
	}

	o.logger.Info("fix attempted",
		"pass_id", passID,
		"problem", p.Name,
		"status", attempt.Status,
		"timed_out", attempt.TimedOut,
		"duration", attempt.Duration,
	)
	o.notifyResult(ctx, passID, p, attempt)
	return attempt, cp
}

type fixResult struct {
	fixed bool
	err   error
}

// attempt runs the fixer under the per-problem deadline. A fix that outlives
// its deadline counts as timed out, but attempt still waits for it to return
// so no two fixes ever touch shared state at once.
func (o *Orchestrator) attempt(ctx context.Context, p model.Problem, timeout time.Duration) (bool, bool, error) {
	fixCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fixCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan fixResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fixResult{err: fmt.Errorf("fix panicked: %v", r)}
			}
		}()
		fixed, err := o.fixer.AttemptFix(fixCtx, p)
		done <- fixResult{fixed: fixed, err: err}
	}()

	var res fixResult
	select {
	case res = <-done:
	case <-fixCtx.Done():
		started := time.Now()
		res = <-done
		o.logger.Warn("fix returned after its context ended",
			"problem", p.Name, "overrun", time.Since(started), "error", fixCtx.Err())
	}
	switch {
	case errors.Is(fixCtx.Err(), context.DeadlineExceeded):
		return false, true, fmt.Errorf("fix timed out after %s", timeout)
	case fixCtx.Err() != nil:
		return false, false, fixCtx.Err()
	}
	return res.fixed, false, res.err
}

// rollback restores checkpoints newest first and returns how many succeeded.
func (o *Orchestrator) rollback(ctx context.Context, passID string, checkpoints []model.Checkpoint) int {
	if o.checkpoints == nil {
		return 0
	}
	restored := 0
	for i := len(checkpoints) - 1; i >= 0; i-- {
		cp := checkpoints[i]
		if err := o.checkpoints.Restore(ctx, cp); err != nil {
			o.logger.Error("failed to restore checkpoint", "pass_id", passID, "checkpoint_id", cp.ID, "error", err)
			continue
		}
		restored++
	}
	return restored
}

func (o *Orchestrator) notify(ctx context.Context, n model.Notification) {
	if o.notifier == nil {
		return
	}
	if n.SourceComponent == "" {
		n.SourceComponent = sourceComponent
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.logger.Warn("failed to deliver repair notification", "title", n.Title, "error", err)
	}
}

func (o *Orchestrator) notifyResult(ctx context.Context, passID string, p model.Problem, a model.FixAttempt) {
	n := model.Notification{
		RepairPassID:       passID,
		Status:             string(a.Status),
		AffectedComponents: componentsOf(p),
	}
	if a.Status == model.ProblemFixed {
		n.Title = fmt.Sprintf("Fixed %s", p.Name)
		n.Message = fmt.Sprintf("resolved in %s", a.Duration.Round(time.Millisecond))
		n.Level = model.LevelSuccess
	} else {
		n.Title = fmt.Sprintf("Failed to fix %s", p.Name)
		n.Message = a.Error
		n.Level = model.LevelWarning
	}
	o.notify(ctx, n)
}

func completionNotification(s model.RepairSummary, strategy model.RepairStrategy, components []string) model.Notification {
	n := model.Notification{
		RepairPassID:       s.PassID,
		Status:             string(s.Outcome),
		AffectedComponents: components,
	}
	switch {
	case s.RolledBack:
		n.Title = "Repair pass rolled back"
		n.Message = fmt.Sprintf("failure rate %.1f%% exceeded threshold %.1f%%; restored %d checkpoints",
			s.FailureRate, strategy.RollbackOnFailureThreshold, s.RestoredCheckpoints)
		n.Level = model.LevelError
	case s.FailedCount > 0:
		n.Title = "Repair pass completed with failures"
		n.Message = fmt.Sprintf("fixed %d, failed %d (%.1f%%)", s.FixedCount, s.FailedCount, s.FailureRate)
		n.Level = model.LevelWarning
	default:
		n.Title = "Repair pass completed"
		n.Message = fmt.Sprintf("fixed %d of %d problems", s.FixedCount, s.TotalCount)
		n.Level = model.LevelSuccess
	}
	return n
}

// OrderProblems drops problems the strategy does not admit and orders the
// rest by the strategy's priority order. Ties keep input order.
func OrderProblems(problems []model.Problem, strategy model.RepairStrategy) ([]model.Problem, int) {
	queue := make([]model.Problem, 0, len(problems))
	for _, p := range problems {
		if strategy.Admits(p) {
			queue = append(queue, p)
		}
	}
	skipped := len(problems) - len(queue)

	var less func(a, b model.Problem) bool
	switch strategy.PriorityOrder {
	case model.OrderFixSuccessRate:
		less = func(a, b model.Problem) bool { return a.FixSuccessRate > b.FixSuccessRate }
	case model.OrderCustom:
		less = func(a, b model.Problem) bool { return strategy.Weight(a.Type) > strategy.Weight(b.Type) }
	default:
		less = func(a, b model.Problem) bool { return a.SeverityRank() > b.SeverityRank() }
	}
	sort.SliceStable(queue, func(i, j int) bool { return less(queue[i], queue[j]) })
	return queue, skipped
}

func componentsOf(p model.Problem) []string {
	if p.Component != "" {
		return []string{p.Component}
	}
	return []string{p.Name}
}

func affectedComponents(problems []model.Problem) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range problems {
		for _, c := range componentsOf(p) {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
