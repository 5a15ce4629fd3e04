package inbound

import (
	"context"

	"github.com/jonny/switchyard/internal/domain/model"
)

// RulePort is the rule CRUD surface consumed by configuration clients.
type RulePort interface {
	List() []model.RoutingRule
	Get(id string) (model.RoutingRule, error)
	Create(ctx context.Context, rule model.RoutingRule) (model.RoutingRule, error)
	Update(ctx context.Context, rule model.RoutingRule) (model.RoutingRule, error)
	Delete(ctx context.Context, id string) error
}

// RoutingPort selects a provider for a request.
type RoutingPort interface {
	Route(ctx context.Context, reqCtx model.RequestContext) model.RoutingDecision
}
