package rulefile_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonny/switchyard/internal/adapter/inbound/rulefile"
	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/service"
)

const twoRules = `
rules:
  - id: premium
    name: premium tier
    enabled: true
    priority: 10
    conditions:
      - field: tier
        operator: equals
        value: {kind: string, string: premium}
    action:
      providerId: anthropic
      fallbackProviderId: openai
  - id: default
    name: default
    enabled: true
    priority: 100
    conditions: []
    action:
      providerId: openai
`

const oneRule = `
rules:
  - id: default
    name: default
    enabled: true
    priority: 100
    action:
      providerId: mistral
`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParse(t *testing.T) {
	rules, err := rulefile.Parse([]byte(twoRules))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	c := rules[0].Conditions[0]
	if c.Operator != model.OpEquals || c.Value.Text() != "premium" || rules[0].Action.FallbackProviderID != "openai" {
		t.Errorf("unexpected rule %+v", rules[0])
	}
	if !rules[1].IsDefault() {
		t.Error("expected second rule to be the default")
	}

	if _, err := rulefile.Parse([]byte("rules: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := rulefile.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestWatcher_ApplyRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	store := service.NewRuleStore(nil, discard())
	w := rulefile.NewWatcher(path, store, 0, discard())

	dup := oneRule + `  - id: other
    name: second default
    enabled: false
    priority: 1
    action:
      providerId: openai
`
	if err := os.WriteFile(path, []byte(dup), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := w.Apply(context.Background()); !errors.Is(err, model.ErrDuplicateDefaultRule) {
		t.Errorf("expected ErrDuplicateDefaultRule, got %v", err)
	}
	if len(store.List()) != 0 {
		t.Error("rejected file must not change live rules")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(twoRules), 0o600); err != nil {
		t.Fatal(err)
	}
	store := service.NewRuleStore(nil, discard())
	w := rulefile.NewWatcher(path, store, 20*time.Millisecond, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	waitFor(t, func() bool { return len(store.List()) == 2 })

	if err := os.WriteFile(path, []byte("rules: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if len(store.List()) != 2 {
		t.Fatal("broken file must keep previous rules")
	}

	if err := os.WriteFile(path, []byte(oneRule), 0o600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		rules := store.List()
		return len(rules) == 1 && rules[0].Action.ProviderID == "mistral"
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
