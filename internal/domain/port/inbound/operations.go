package inbound

import (
	"context"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// OperationsPort drives diagnostics and repair passes from HTTP, chat and the scheduler.
type OperationsPort interface {
	RunDiagnostics(ctx context.Context) (model.DiagnosticsResult, error)
	LatestDiagnostics(ctx context.Context) (model.DiagnosticsResult, error)
	// RunAutoFix repairs the problems of the latest diagnostics run. A nil
	// strategy uses the configured one.
	RunAutoFix(ctx context.Context, strategy *model.RepairStrategy) (model.RepairSummary, error)
	RepairHistory(ctx context.Context, page outbound.PageRequest) (outbound.PageResult[model.RepairSummary], error)
	RepairState() model.RepairState
}
