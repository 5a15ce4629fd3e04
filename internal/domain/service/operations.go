package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/inbound"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// Operations is the entry point for diagnostics and repair shared by the
// HTTP API, the chat bot and the scheduler.
type Operations struct {
	engine       *Engine
	orchestrator *Orchestrator
	history      outbound.RepairHistoryRepository
	strategy     model.RepairStrategy
	logger       *slog.Logger
}

var _ inbound.OperationsPort = (*Operations)(nil)

func NewOperations(engine *Engine, orchestrator *Orchestrator, history outbound.RepairHistoryRepository, strategy model.RepairStrategy, logger *slog.Logger) *Operations {
	return &Operations{
		engine:       engine,
		orchestrator: orchestrator,
		history:      history,
		strategy:     strategy,
		logger:       logger,
	}
}

func (o *Operations) RunDiagnostics(ctx context.Context) (model.DiagnosticsResult, error) {
	return o.engine.Run(ctx)
}

func (o *Operations) LatestDiagnostics(_ context.Context) (model.DiagnosticsResult, error) {
	r, ok := o.engine.Latest()
	if !ok {
		return model.DiagnosticsResult{}, model.ErrNoDiagnostics
	}
	return r, nil
}

// RunAutoFix repairs the problems of the latest diagnostics run, running
// diagnostics first when none has completed yet.
func (o *Operations) RunAutoFix(ctx context.Context, strategy *model.RepairStrategy) (model.RepairSummary, error) {
	s := o.strategy
	if strategy != nil {
		s = *strategy
	}
	latest, ok := o.engine.Latest()
	if !ok {
		var err error
		if latest, err = o.engine.Run(ctx); err != nil {
			return model.RepairSummary{}, err
		}
	}
	return o.orchestrator.Run(ctx, latest.Problems, s)
}

func (o *Operations) RepairHistory(ctx context.Context, page outbound.PageRequest) (outbound.PageResult[model.RepairSummary], error) {
	if o.history == nil {
		return outbound.PageResult[model.RepairSummary]{Page: page.Page, Size: page.Size}, nil
	}
	return o.history.List(ctx, page)
}

func (o *Operations) RepairState() model.RepairState {
	return o.orchestrator.State()
}

// Schedule runs diagnostics every interval until ctx ends. With autoRepair
// set, a run that finds problems is followed by a repair pass.
func (o *Operations) Schedule(ctx context.Context, interval time.Duration, autoRepair bool) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.tick(ctx, autoRepair)
		}
	}
}

func (o *Operations) tick(ctx context.Context, autoRepair bool) {
	result, err := o.engine.Run(ctx)
	if err != nil {
		if errors.Is(err, model.ErrDiagnosticsInProgress) {
			o.logger.Debug("scheduled diagnostics skipped; run in progress")
			return
		}
		o.logger.Error("scheduled diagnostics failed", "error", err)
		return
	}
	if !autoRepair || len(result.Problems) == 0 {
		return
	}
	summary, err := o.orchestrator.Run(ctx, result.Problems, o.strategy)
	if err != nil {
		if errors.Is(err, model.ErrRepairPassInProgress) {
			o.logger.Debug("scheduled repair skipped; pass in progress")
			return
		}
		o.logger.Error("scheduled repair failed", "error", err)
		return
	}
	o.logger.Info("scheduled repair completed", "pass_id", summary.PassID, "outcome", summary.Outcome)
}
