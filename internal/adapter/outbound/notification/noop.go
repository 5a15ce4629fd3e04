package notification

import (
	"context"
	"log/slog"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

var (
	_ outbound.Notifier            = (*NoopNotifier)(nil)
	_ outbound.DiagnosticsReporter = (*NoopNotifier)(nil)
)

// NoopNotifier logs notifications instead of sending them.
// Used in local development when Slack is not configured.
type NoopNotifier struct {
	logger *slog.Logger
}

func NewNoopNotifier(logger *slog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) Notify(_ context.Context, notification model.Notification) error {
	n.logger.Info("noop: notification",
		"title", notification.Title,
		"level", notification.Level,
		"status", notification.Status,
		"passID", notification.RepairPassID,
		"components", notification.AffectedComponents,
	)
	return nil
}

func (n *NoopNotifier) ReportDiagnostics(_ context.Context, result model.DiagnosticsResult) error {
	n.logger.Info("noop: diagnostics report",
		"id", result.ID,
		"overallScore", result.OverallScore,
		"problems", len(result.Problems),
	)
	return nil
}
