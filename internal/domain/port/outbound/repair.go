package outbound

import (
	"context"

	"github.com/jonny/switchyard/internal/domain/model"
)

// Checkpointer snapshots state before a fix and restores it on rollback.
type Checkpointer interface {
	Create(ctx context.Context, problem model.Problem) (model.Checkpoint, error)
	Restore(ctx context.Context, checkpoint model.Checkpoint) error
}

// FixExecutor attempts to remediate a single problem. It reports false when
// the remediation ran but did not resolve the problem.
type FixExecutor interface {
	AttemptFix(ctx context.Context, problem model.Problem) (bool, error)
}
