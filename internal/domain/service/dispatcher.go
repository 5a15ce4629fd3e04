package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/inbound"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

type DispatchResult struct {
	Decision     model.RoutingDecision
	ProviderID   string
	Result       outbound.InvocationResult
	UsedFallback bool
	// PrimaryError is set when the fallback provider served the request.
	PrimaryError *model.ErrorDetails
}

// Dispatcher routes a request, invokes the chosen provider with retry and
// falls back to the rule's fallback provider once the primary gives up.
type Dispatcher struct {
	router  inbound.RoutingPort
	invoker outbound.ProviderInvoker
	retrier *Retrier
	config  model.RetryConfig
	logger  *slog.Logger
}

func NewDispatcher(router inbound.RoutingPort, invoker outbound.ProviderInvoker, retrier *Retrier, cfg model.RetryConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		router:  router,
		invoker: invoker,
		retrier: retrier,
		config:  cfg,
		logger:  logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, reqCtx model.RequestContext, payload []byte) (DispatchResult, error) {
	decision := d.router.Route(ctx, reqCtx)
	out := DispatchResult{Decision: decision, ProviderID: decision.ProviderID}

	res, err := d.invoke(ctx, decision.ProviderID, decision, payload)
	if err == nil {
		out.Result = res
		return out, nil
	}
	var primaryErr *model.ErrorDetails
	if !errors.As(err, &primaryErr) {
		primaryErr = Classify(err)
	}

	if !decision.HasFallback() || ctx.Err() != nil {
		return out, primaryErr
	}

	d.logger.WarnContext(ctx, "primary provider failed; trying fallback",
		"provider", decision.ProviderID,
		"fallback", decision.FallbackProviderID,
		"error_type", primaryErr.Type,
	)
	res, err = d.invoke(ctx, decision.FallbackProviderID, decision, payload)
	if err != nil {
		return out, err
	}
	out.ProviderID = decision.FallbackProviderID
	out.Result = res
	out.UsedFallback = true
	out.PrimaryError = primaryErr
	return out, nil
}

// invoke returns either a result or a *model.ErrorDetails.
func (d *Dispatcher) invoke(ctx context.Context, providerID string, decision model.RoutingDecision, payload []byte) (outbound.InvocationResult, error) {
	req := outbound.InvocationRequest{
		ProviderID: providerID,
		Model:      decision.Model,
		Parameters: decision.Parameters,
		Payload:    payload,
	}
	return Do(ctx, d.retrier, d.config, providerID, func(ctx context.Context) (outbound.InvocationResult, error) {
		return d.invoker.Invoke(ctx, req)
	})
}
