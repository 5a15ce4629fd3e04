package remediation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonny/switchyard/internal/adapter/outbound/remediation"
	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
	"github.com/jonny/switchyard/internal/domain/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedWith(result bool, calls *[]string, tag string) remediation.Func {
	return func(context.Context, model.Problem) (bool, error) {
		*calls = append(*calls, tag)
		return result, nil
	}
}

func TestRegistry_Lookup(t *testing.T) {
	var calls []string
	r := remediation.NewRegistry(discardLogger())
	r.Register("routing.rules", fixedWith(true, &calls, "exact"))
	r.RegisterPrefix("provider.", fixedWith(false, &calls, "provider"))
	r.RegisterPrefix("provider.openai.", fixedWith(true, &calls, "openai"))

	ctx := context.Background()
	cases := []struct {
		problem model.Problem
		tag     string
		fixed   bool
	}{
		{model.Problem{CheckName: "routing.rules"}, "exact", true},
		{model.Problem{CheckName: "provider.openai.reachable"}, "openai", true},
		{model.Problem{CheckName: "provider.anthropic.reachable"}, "provider", false},
		{model.Problem{Name: "routing.rules"}, "exact", true},
	}
	for _, tc := range cases {
		calls = nil
		fixed, err := r.AttemptFix(ctx, tc.problem)
		if err != nil {
			t.Fatalf("%+v: %v", tc.problem, err)
		}
		if fixed != tc.fixed || len(calls) != 1 || calls[0] != tc.tag {
			t.Errorf("%+v: fixed=%v calls=%v, want %v via %s", tc.problem, fixed, calls, tc.fixed, tc.tag)
		}
	}

	if _, err := r.AttemptFix(ctx, model.Problem{CheckName: "admin.auth"}); !errors.Is(err, model.ErrNoRemediation) {
		t.Errorf("expected ErrNoRemediation, got %v", err)
	}

	r.SetFallback(service.EstimateDecision(60))
	fixed, err := r.AttemptFix(ctx, model.Problem{CheckName: "admin.auth", FixSuccessRate: 75})
	if err != nil || !fixed {
		t.Errorf("fallback: expected fixed without error, got %v, %v", fixed, err)
	}
	if fixed, _ := r.AttemptFix(ctx, model.Problem{CheckName: "admin.auth", FixSuccessRate: 40}); fixed {
		t.Error("fallback: expected low estimate to fail")
	}
}

func TestChain(t *testing.T) {
	var calls []string
	boom := func(context.Context, model.Problem) (bool, error) {
		calls = append(calls, "boom")
		return false, errors.New("boom")
	}
	fixed, err := remediation.Chain(boom, fixedWith(true, &calls, "second"), fixedWith(true, &calls, "third"))(context.Background(), model.Problem{})
	if !fixed || err != nil || len(calls) != 2 {
		t.Errorf("expected chain to stop at second, got fixed=%v err=%v calls=%v", fixed, err, calls)
	}

	calls = nil
	fixed, err = remediation.Chain(boom, fixedWith(false, &calls, "nope"))(context.Background(), model.Problem{})
	if fixed || err == nil || err.Error() != "boom" {
		t.Errorf("expected unfixed with boom, got fixed=%v err=%v", fixed, err)
	}
}

func conditioned(name, provider, fallback string) model.RoutingRule {
	return model.NewRoutingRule(name, 10, model.Action{ProviderID: provider, FallbackProviderID: fallback},
		model.Condition{Field: "task", Operator: model.OpEquals, Value: model.StringValue(name)})
}

func TestRoutingRules_RepairsRuleSet(t *testing.T) {
	store := service.NewRuleStore(nil, discardLogger())
	ctx := context.Background()
	known := map[string]bool{"openai": true, "anthropic": true}

	badFallback, _ := store.Create(ctx, conditioned("chat", "anthropic", "mistral"))
	unknown, _ := store.Create(ctx, conditioned("embed", "cohere", ""))

	fix := remediation.RoutingRules(store, store, known, model.Action{ProviderID: "anthropic", Model: "claude-haiku"})
	fixed, err := fix(ctx, model.Problem{CheckName: service.CheckRoutingRules})
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if !fixed {
		t.Fatal("expected rule set to be repaired")
	}

	if r, _ := store.Get(badFallback.ID); r.Action.FallbackProviderID != "" || !r.Enabled {
		t.Errorf("expected fallback cleared and rule kept enabled, got %+v", r)
	}
	if r, _ := store.Get(unknown.ID); r.Enabled {
		t.Errorf("expected rule routed to unknown provider to be disabled")
	}
	var defaults []model.RoutingRule
	for _, r := range store.List() {
		if r.IsDefault() {
			defaults = append(defaults, r)
		}
	}
	if len(defaults) != 1 || defaults[0].Action.ProviderID != "anthropic" || !defaults[0].Enabled {
		t.Errorf("expected one restored default, got %+v", defaults)
	}

	// Idempotent on a healthy set.
	before := len(store.List())
	if fixed, err := fix(ctx, model.Problem{}); !fixed || err != nil || len(store.List()) != before {
		t.Errorf("second run: fixed=%v err=%v rules=%d", fixed, err, len(store.List()))
	}
}

func TestRoutingRules_ReenablesDisabledDefault(t *testing.T) {
	store := service.NewRuleStore(nil, discardLogger())
	ctx := context.Background()
	def := model.NewRoutingRule("default", 0, model.Action{ProviderID: "openai"}).WithEnabled(false)
	def, _ = store.Create(ctx, def)

	fixed, err := remediation.RoutingRules(store, store, nil, model.Action{})(ctx, model.Problem{})
	if err != nil || !fixed {
		t.Fatalf("expected fix, got %v %v", fixed, err)
	}
	if r, _ := store.Get(def.ID); !r.Enabled {
		t.Error("expected disabled default to be re-enabled")
	}
	if len(store.List()) != 1 {
		t.Errorf("no new default should be created, got %d rules", len(store.List()))
	}
}

func TestRoutingRules_SystemDefaultAction(t *testing.T) {
	store := service.NewRuleStore(nil, discardLogger())
	fixed, err := remediation.RoutingRules(store, store, nil, model.Action{})(context.Background(), model.Problem{})
	if err != nil || !fixed {
		t.Fatalf("expected fix, got %v %v", fixed, err)
	}
	rules := store.List()
	if len(rules) != 1 || rules[0].Action.ProviderID != model.DefaultProviderID || rules[0].Action.Model != model.DefaultModel {
		t.Errorf("expected system default action, got %+v", rules)
	}
}

type stubProber struct {
	res outbound.ProbeResult
	err error
}

func (s stubProber) Probe(context.Context, string) (outbound.ProbeResult, error) { return s.res, s.err }

func TestReprobe(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		p     stubProber
		fixed bool
		err   bool
	}{
		{"healthy", stubProber{res: outbound.ProbeResult{StatusCode: 200, Latency: 50 * time.Millisecond}}, true, false},
		{"slow", stubProber{res: outbound.ProbeResult{StatusCode: 200, Latency: 2 * time.Second}}, false, false},
		{"unavailable", stubProber{res: outbound.ProbeResult{StatusCode: 503}}, false, false},
		{"transport", stubProber{err: errors.New("connection refused")}, false, true},
	}
	for _, tc := range cases {
		fixed, err := remediation.Reprobe(tc.p, "openai", time.Second)(ctx, model.Problem{})
		if fixed != tc.fixed || (err != nil) != tc.err {
			t.Errorf("%s: fixed=%v err=%v", tc.name, fixed, err)
		}
	}
}

type stubWorkload struct {
	restarts   int
	restartErr error
	statuses   []outbound.DeploymentStatus
	polls      int
}

func (s *stubWorkload) DeploymentStatus(context.Context, string, string) (outbound.DeploymentStatus, error) {
	st := s.statuses[min(s.polls, len(s.statuses)-1)]
	s.polls++
	return st, nil
}

func (s *stubWorkload) RestartDeployment(context.Context, string, string) error {
	s.restarts++
	return s.restartErr
}

func (s *stubWorkload) HealthCheck(context.Context) error { return nil }

var _ outbound.WorkloadController = (*stubWorkload)(nil)

func TestRestartDeployment(t *testing.T) {
	ctx := context.Background()
	rolling := outbound.DeploymentStatus{DesiredReplicas: 2, ReadyReplicas: 1, UpdatedReplicas: 1}
	ready := outbound.DeploymentStatus{DesiredReplicas: 2, ReadyReplicas: 2, UpdatedReplicas: 2}

	ctl := &stubWorkload{statuses: []outbound.DeploymentStatus{rolling, ready}}
	fixed, err := remediation.RestartDeployment(ctl, "llm", "vllm", time.Second, time.Millisecond)(ctx, model.Problem{})
	if err != nil || !fixed || ctl.restarts != 1 || ctl.polls < 2 {
		t.Errorf("expected restart then ready, got fixed=%v err=%v restarts=%d polls=%d", fixed, err, ctl.restarts, ctl.polls)
	}

	stuck := &stubWorkload{statuses: []outbound.DeploymentStatus{rolling}}
	fixed, err = remediation.RestartDeployment(stuck, "llm", "vllm", 20*time.Millisecond, time.Millisecond)(ctx, model.Problem{})
	if err != nil || fixed {
		t.Errorf("expected unsettled rollout to report unfixed, got fixed=%v err=%v", fixed, err)
	}

	noWait := &stubWorkload{}
	if fixed, err := remediation.RestartDeployment(noWait, "llm", "vllm", 0, 0)(ctx, model.Problem{}); !fixed || err != nil || noWait.polls != 0 {
		t.Errorf("zero settle should only restart, got fixed=%v err=%v polls=%d", fixed, err, noWait.polls)
	}

	denied := &stubWorkload{restartErr: errors.New("namespace blocked")}
	if fixed, err := remediation.RestartDeployment(denied, "kube-system", "x", time.Second, 0)(ctx, model.Problem{}); fixed || err == nil {
		t.Errorf("expected restart error, got fixed=%v err=%v", fixed, err)
	}
}
