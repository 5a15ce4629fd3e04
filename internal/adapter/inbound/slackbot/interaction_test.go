package slackbot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/inbound"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

type mockOps struct {
	diagErr   error
	fixErr    error
	latest    *model.DiagnosticsResult
	state     model.RepairState
	fixCalls  int
	diagCalls int
}

var _ inbound.OperationsPort = (*mockOps)(nil)

func (m *mockOps) RunDiagnostics(context.Context) (model.DiagnosticsResult, error) {
	m.diagCalls++
	if m.diagErr != nil {
		return model.DiagnosticsResult{}, m.diagErr
	}
	return model.DiagnosticsResult{ID: "diag_1", OverallScore: 92}, nil
}

func (m *mockOps) LatestDiagnostics(context.Context) (model.DiagnosticsResult, error) {
	if m.latest == nil {
		return model.DiagnosticsResult{}, model.ErrNoDiagnostics
	}
	return *m.latest, nil
}

func (m *mockOps) RunAutoFix(_ context.Context, _ *model.RepairStrategy) (model.RepairSummary, error) {
	m.fixCalls++
	if m.fixErr != nil {
		return model.RepairSummary{}, m.fixErr
	}
	return model.RepairSummary{PassID: "pass-1", Outcome: model.RepairCompleted, FixedCount: 2, TotalCount: 2}, nil
}

func (m *mockOps) RepairHistory(context.Context, outbound.PageRequest) (outbound.PageResult[model.RepairSummary], error) {
	return outbound.PageResult[model.RepairSummary]{}, nil
}

func (m *mockOps) RepairState() model.RepairState {
	if m.state == "" {
		return model.RepairIdle
	}
	return m.state
}

func newTestBot(ops *mockOps) *Bot {
	return NewBot(Config{BotToken: "xoxb-test", AppToken: "xapp-test"}, ops, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseCommand(t *testing.T) {
	cases := map[string]command{
		"":               cmdHelp,
		"   ":            cmdHelp,
		"diagnose":       cmdDiagnose,
		"Diagnostics":    cmdDiagnose,
		"check now":      cmdDiagnose,
		"fix":            cmdFix,
		"REPAIR":         cmdFix,
		"autofix please": cmdFix,
		"status":         cmdStatus,
		"help":           cmdHelp,
		"deploy prod":    cmdUnknown,
	}
	for in, want := range cases {
		if got := parseCommand(in); got != want {
			t.Errorf("parseCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripMention(t *testing.T) {
	cases := map[string]string{
		"<@U123> diagnose":     "diagnose",
		"<@U123> <@U456>  fix": "fix",
		"status":               "status",
		"<@broken status":      "<@broken status",
	}
	for in, want := range cases {
		if got := stripMention(in); got != want {
			t.Errorf("stripMention(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExecute_Diagnose(t *testing.T) {
	ops := &mockOps{}
	r := newTestBot(ops).execute(context.Background(), cmdDiagnose)
	if ops.diagCalls != 1 {
		t.Fatalf("expected one diagnostics run, got %d", ops.diagCalls)
	}
	if !strings.Contains(r.Text, "92") || len(r.Blocks) == 0 {
		t.Errorf("unexpected reply %+v", r)
	}
}

func TestExecute_FixInProgress(t *testing.T) {
	ops := &mockOps{fixErr: model.ErrRepairPassInProgress}
	r := newTestBot(ops).execute(context.Background(), cmdFix)
	if !strings.Contains(r.Text, "already running") || len(r.Blocks) != 0 {
		t.Errorf("unexpected reply %+v", r)
	}
}

func TestExecute_FixSummary(t *testing.T) {
	r := newTestBot(&mockOps{}).execute(context.Background(), cmdFix)
	if r.Text != "Repair pass pass-1: completed" || len(r.Blocks) == 0 {
		t.Errorf("unexpected reply %+v", r)
	}
}

func TestExecute_Status(t *testing.T) {
	ops := &mockOps{state: model.RepairRunning}
	bot := newTestBot(ops)
	r := bot.execute(context.Background(), cmdStatus)
	if !strings.Contains(r.Text, "running") || !strings.Contains(r.Text, "No diagnostics run yet") {
		t.Errorf("unexpected status %q", r.Text)
	}

	ops.latest = &model.DiagnosticsResult{ID: "diag_7", OverallScore: 64, FinishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r = bot.execute(context.Background(), cmdStatus)
	if !strings.Contains(r.Text, "diag_7") || !strings.Contains(r.Text, "score 64") {
		t.Errorf("unexpected status %q", r.Text)
	}
}

func TestExecute_HelpAndUnknown(t *testing.T) {
	bot := newTestBot(&mockOps{})
	help := bot.execute(context.Background(), cmdHelp).Text
	for _, want := range []string{"/switchyard diagnose", "/switchyard fix", "/switchyard status"} {
		if !strings.Contains(help, want) {
			t.Errorf("help text missing %q", want)
		}
	}
	if got := bot.execute(context.Background(), cmdUnknown).Text; !strings.Contains(got, "Unknown command") {
		t.Errorf("unexpected unknown reply %q", got)
	}
}
