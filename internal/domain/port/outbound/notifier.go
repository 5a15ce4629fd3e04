package outbound

import (
	"context"

	"github.com/jonny/switchyard/internal/domain/model"
)

// Notifier delivers repair lifecycle notifications to users via messaging platforms.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// DiagnosticsReporter publishes a finished diagnostics run.
type DiagnosticsReporter interface {
	ReportDiagnostics(ctx context.Context, result model.DiagnosticsResult) error
}
