package outbound

import (
	"context"

	"github.com/jonny/switchyard/internal/domain/model"
)

// DiagnosticCheck is one named probe in a diagnostics run. A returned error
// is reported as an error status with the error text as message.
type DiagnosticCheck interface {
	Name() string
	Category() model.ProblemType
	Run(ctx context.Context) (model.CheckOutcome, error)
}
