package service

import (
	"context"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// FixDecisionFunc adapts a pure decision to outbound.FixExecutor. It is used
// for problems without a real remediation and for deterministic tests.
type FixDecisionFunc func(ctx context.Context, p model.Problem) bool

var _ outbound.FixExecutor = FixDecisionFunc(nil)

func (f FixDecisionFunc) AttemptFix(ctx context.Context, p model.Problem) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f(ctx, p), nil
}

// EstimateDecision succeeds exactly when the problem's a-priori fix success
// rate reaches cutoff.
func EstimateDecision(cutoff int) FixDecisionFunc {
	return func(_ context.Context, p model.Problem) bool {
		return p.FixSuccessRate >= cutoff
	}
}

// SyntheticAware sends synthetic problems to synthetic and everything else
// to real.
type SyntheticAware struct {
	Real      outbound.FixExecutor
	Synthetic outbound.FixExecutor
}

var _ outbound.FixExecutor = SyntheticAware{}

func (s SyntheticAware) AttemptFix(ctx context.Context, p model.Problem) (bool, error) {
	if p.IsSynthetic() {
		return s.Synthetic.AttemptFix(ctx, p)
	}
	return s.Real.AttemptFix(ctx, p)
}
