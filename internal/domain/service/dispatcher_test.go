package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/service"
)

func newTestDispatcher(t *testing.T, rules []model.RoutingRule, invoker *mockInvoker, monitor *service.Monitor) *service.Dispatcher {
	t.Helper()
	store := service.NewRuleStore(nil, discardLogger())
	if err := store.Replace(context.Background(), rules); err != nil {
		t.Fatalf("replace: %v", err)
	}
	router := service.NewRouter(store, discardLogger())
	retrier := service.NewRetrier(discardLogger(),
		service.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		service.WithMonitor(monitor),
	)
	cfg := model.DefaultRetryConfig()
	cfg.MaxRetries = 2
	return service.NewDispatcher(router, invoker, retrier, cfg, discardLogger())
}

func fallbackRules() []model.RoutingRule {
	return []model.RoutingRule{{
		ID: "primary", Name: "primary", Enabled: true, Priority: 1,
		Action: model.Action{ProviderID: "anthropic", Model: "claude", FallbackProviderID: "openai"},
	}}
}

func TestDispatcher_PrimarySuccess(t *testing.T) {
	invoker := newMockInvoker()
	d := newTestDispatcher(t, fallbackRules(), invoker, service.NewMonitor(10))

	res, err := d.Dispatch(context.Background(), model.RequestContext{}, []byte("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ProviderID != "anthropic" || res.UsedFallback {
		t.Errorf("expected primary to serve, got %+v", res)
	}
	if string(res.Result.Body) != "hi" || res.Result.Model != "claude" {
		t.Errorf("unexpected result %+v", res.Result)
	}
	if invoker.count("openai") != 0 {
		t.Error("fallback must not be called on success")
	}
}

func TestDispatcher_FallsBackAfterRetries(t *testing.T) {
	invoker := newMockInvoker()
	invoker.errs["anthropic"] = &model.HTTPError{Status: 503}
	monitor := service.NewMonitor(10)
	d := newTestDispatcher(t, fallbackRules(), invoker, monitor)

	res, err := d.Dispatch(context.Background(), model.RequestContext{}, nil)
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if !res.UsedFallback || res.ProviderID != "openai" {
		t.Errorf("expected openai fallback, got %+v", res)
	}
	if res.PrimaryError == nil || res.PrimaryError.Type != model.ErrorServer || res.PrimaryError.Attempts != 3 {
		t.Errorf("unexpected primary error %+v", res.PrimaryError)
	}
	if invoker.count("anthropic") != 3 {
		t.Errorf("expected 3 primary attempts, got %d", invoker.count("anthropic"))
	}
	if s := monitor.Stats("anthropic"); s.Failures != 3 {
		t.Errorf("expected 3 recorded failures, got %+v", s)
	}
	if s := monitor.Stats("openai"); s.Samples != 1 || s.Failures != 0 {
		t.Errorf("expected one fallback success recorded, got %+v", s)
	}
}

func TestDispatcher_NonRetryablePrimaryStillFallsBack(t *testing.T) {
	invoker := newMockInvoker()
	invoker.errs["anthropic"] = &model.HTTPError{Status: 401}
	d := newTestDispatcher(t, fallbackRules(), invoker, service.NewMonitor(10))

	res, err := d.Dispatch(context.Background(), model.RequestContext{}, nil)
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if invoker.count("anthropic") != 1 {
		t.Errorf("expected single primary attempt, got %d", invoker.count("anthropic"))
	}
	if res.PrimaryError.Type != model.ErrorAuthentication {
		t.Errorf("expected authentication error, got %s", res.PrimaryError.Type)
	}
}

func TestDispatcher_NoFallbackReturnsPrimaryError(t *testing.T) {
	invoker := newMockInvoker()
	invoker.errs["anthropic"] = &model.HTTPError{Status: 429, Request: "req-9"}
	rules := []model.RoutingRule{{ID: "solo", Enabled: true, Action: model.Action{ProviderID: "anthropic"}}}
	d := newTestDispatcher(t, rules, invoker, service.NewMonitor(10))

	_, err := d.Dispatch(context.Background(), model.RequestContext{}, nil)
	var details *model.ErrorDetails
	if !errors.As(err, &details) {
		t.Fatalf("expected ErrorDetails, got %v", err)
	}
	if details.Type != model.ErrorRateLimit || details.RequestID != "req-9" || details.ProviderID != "anthropic" {
		t.Errorf("expected intact primary details, got %+v", details)
	}
}

func TestDispatcher_BothFail(t *testing.T) {
	invoker := newMockInvoker()
	invoker.errs["anthropic"] = &model.HTTPError{Status: 500}
	invoker.errs["openai"] = &model.HTTPError{Status: 402}
	d := newTestDispatcher(t, fallbackRules(), invoker, service.NewMonitor(10))

	_, err := d.Dispatch(context.Background(), model.RequestContext{}, nil)
	var details *model.ErrorDetails
	if !errors.As(err, &details) {
		t.Fatalf("expected ErrorDetails, got %v", err)
	}
	if details.ProviderID != "openai" || details.Type != model.ErrorQuotaExceeded {
		t.Errorf("expected fallback failure details, got %+v", details)
	}
}
