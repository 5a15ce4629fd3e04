package outbound

import (
	"context"

	"github.com/jonny/switchyard/internal/domain/model"
)

type PageRequest struct {
	Page int
	Size int
}

type PageResult[T any] struct {
	Items      []T
	TotalCount int64
	Page       int
	Size       int
}

// RuleRepository persists routing rules. List returns rules in insertion order.
type RuleRepository interface {
	List(ctx context.Context) ([]model.RoutingRule, error)
	Upsert(ctx context.Context, rule model.RoutingRule) error
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, rules []model.RoutingRule) error
}

// RepairHistoryRepository retains the summaries of completed repair passes.
type RepairHistoryRepository interface {
	Save(ctx context.Context, summary model.RepairSummary) error
	GetByPassID(ctx context.Context, passID string) (model.RepairSummary, error)
	List(ctx context.Context, page PageRequest) (PageResult[model.RepairSummary], error)
}
