package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock RuleRepository ---

type mockRuleRepo struct {
	mu    sync.Mutex
	rules []model.RoutingRule
	err   error
}

func (m *mockRuleRepo) List(_ context.Context) ([]model.RoutingRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]model.RoutingRule(nil), m.rules...), nil
}

func (m *mockRuleRepo) Upsert(_ context.Context, rule model.RoutingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i, r := range m.rules {
		if r.ID == rule.ID {
			m.rules[i] = rule
			return nil
		}
	}
	m.rules = append(m.rules, rule)
	return nil
}

func (m *mockRuleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return model.ErrRuleNotFound
}

func (m *mockRuleRepo) ReplaceAll(_ context.Context, rules []model.RoutingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rules = append([]model.RoutingRule(nil), rules...)
	return nil
}

var _ outbound.RuleRepository = (*mockRuleRepo)(nil)

// --- mock Notifier ---

type mockNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

func (m *mockNotifier) titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, n := range m.sent {
		out[i] = n.Title
	}
	return out
}

var _ outbound.Notifier = (*mockNotifier)(nil)

// --- mock Checkpointer ---

type mockCheckpointer struct {
	mu        sync.Mutex
	created   []model.Checkpoint
	restored  []string
	createErr error
	failFor   map[string]bool
}

func (m *mockCheckpointer) Create(_ context.Context, p model.Problem) (model.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil || m.failFor[p.ID] {
		return model.Checkpoint{}, errors.New("snapshot unavailable")
	}
	cp := model.Checkpoint{ID: "ckpt-" + p.ID, ProblemID: p.ID, Backend: "mock"}
	m.created = append(m.created, cp)
	return cp, nil
}

func (m *mockCheckpointer) Restore(_ context.Context, cp model.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restored = append(m.restored, cp.ID)
	return nil
}

var _ outbound.Checkpointer = (*mockCheckpointer)(nil)

// --- mock RepairHistoryRepository ---

type mockHistory struct {
	mu      sync.Mutex
	saved   []model.RepairSummary
	saveErr error
}

func (m *mockHistory) Save(_ context.Context, s model.RepairSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, s)
	return nil
}

func (m *mockHistory) GetByPassID(_ context.Context, passID string) (model.RepairSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.saved {
		if s.PassID == passID {
			return s, nil
		}
	}
	return model.RepairSummary{}, errors.New("not found")
}

func (m *mockHistory) List(_ context.Context, page outbound.PageRequest) (outbound.PageResult[model.RepairSummary], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return outbound.PageResult[model.RepairSummary]{
		Items:      append([]model.RepairSummary(nil), m.saved...),
		TotalCount: int64(len(m.saved)),
		Page:       page.Page,
		Size:       page.Size,
	}, nil
}

var _ outbound.RepairHistoryRepository = (*mockHistory)(nil)

// --- mock ProviderInvoker ---

type mockInvoker struct {
	mu    sync.Mutex
	calls map[string]int
	// errs maps provider ID to the error every call returns.
	errs map[string]error
}

func newMockInvoker() *mockInvoker {
	return &mockInvoker{calls: make(map[string]int), errs: make(map[string]error)}
}

func (m *mockInvoker) Invoke(_ context.Context, req outbound.InvocationRequest) (outbound.InvocationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[req.ProviderID]++
	if err := m.errs[req.ProviderID]; err != nil {
		return outbound.InvocationResult{}, err
	}
	return outbound.InvocationResult{ProviderID: req.ProviderID, Model: req.Model, StatusCode: 200, Body: req.Payload}, nil
}

func (m *mockInvoker) count(providerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[providerID]
}

var _ outbound.ProviderInvoker = (*mockInvoker)(nil)

// --- mock ProviderProber ---

type mockProber struct {
	mu      sync.Mutex
	results map[string]outbound.ProbeResult
	errs    map[string]error
	calls   int
}

func (m *mockProber) Probe(_ context.Context, providerID string) (outbound.ProbeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.errs[providerID]; err != nil {
		return outbound.ProbeResult{}, err
	}
	return m.results[providerID], nil
}

var _ outbound.ProviderProber = (*mockProber)(nil)

// --- mock WorkloadController ---

type mockWorkload struct {
	status    outbound.DeploymentStatus
	statusErr error
	restarted []string
}

func (m *mockWorkload) DeploymentStatus(_ context.Context, namespace, name string) (outbound.DeploymentStatus, error) {
	if m.statusErr != nil {
		return outbound.DeploymentStatus{}, m.statusErr
	}
	st := m.status
	st.Namespace, st.Name = namespace, name
	return st, nil
}

func (m *mockWorkload) RestartDeployment(_ context.Context, namespace, name string) error {
	m.restarted = append(m.restarted, namespace+"/"+name)
	return nil
}

func (m *mockWorkload) HealthCheck(context.Context) error { return nil }

var _ outbound.WorkloadController = (*mockWorkload)(nil)
