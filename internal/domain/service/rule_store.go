package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/inbound"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// RuleStore holds the ordered rule set. Readers take an immutable snapshot
// without locking; writers are serialised and publish a fresh slice.
type RuleStore struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]model.RoutingRule]
	repo     outbound.RuleRepository
	logger   *slog.Logger
}

var _ inbound.RulePort = (*RuleStore)(nil)
var _ RuleSource = (*RuleStore)(nil)

// NewRuleStore creates an empty store. repo may be nil for a memory-only store.
func NewRuleStore(repo outbound.RuleRepository, logger *slog.Logger) *RuleStore {
	s := &RuleStore{repo: repo, logger: logger}
	empty := []model.RoutingRule{}
	s.snapshot.Store(&empty)
	return s
}

// Load replaces the in-memory set with the persisted rules.
func (s *RuleStore) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load routing rules: %w", err)
	}
	s.publish(rules)
	s.logger.Info("routing rules loaded", "count", len(rules))
	return nil
}

// Snapshot returns the current rule set. The slice must not be modified.
func (s *RuleStore) Snapshot() []model.RoutingRule {
	return *s.snapshot.Load()
}

// List returns a deep copy of the rule set in insertion order.
func (s *RuleStore) List() []model.RoutingRule {
	current := s.Snapshot()
	out := make([]model.RoutingRule, len(current))
	for i, r := range current {
		out[i] = r.Clone()
	}
	return out
}

func (s *RuleStore) Get(id string) (model.RoutingRule, error) {
	for _, r := range s.Snapshot() {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return model.RoutingRule{}, fmt.Errorf("get rule %s: %w", id, model.ErrRuleNotFound)
}

func (s *RuleStore) Create(ctx context.Context, rule model.RoutingRule) (model.RoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if rule.ID == "" {
		rule.ID = model.NewID("rule_")
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule = rule.Clone()

	if err := rule.Validate(); err != nil {
		return model.RoutingRule{}, err
	}
	current := s.Snapshot()
	for _, r := range current {
		if r.ID == rule.ID {
			return model.RoutingRule{}, fmt.Errorf("create rule %s: %w", rule.ID, model.ErrRuleExists)
		}
	}
	next := make([]model.RoutingRule, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, rule)
	if err := checkSingleDefault(next); err != nil {
		return model.RoutingRule{}, fmt.Errorf("create rule %s: %w", rule.ID, err)
	}

	if s.repo != nil {
		if err := s.repo.Upsert(ctx, rule); err != nil {
			return model.RoutingRule{}, fmt.Errorf("persist rule %s: %w", rule.ID, err)
		}
	}
	s.publish(next)
	s.logger.Info("routing rule created", "rule_id", rule.ID, "name", rule.Name, "priority", rule.Priority)
	return rule.Clone(), nil
}

// Update replaces an existing rule in place, keeping its position and creation time.
func (s *RuleStore) Update(ctx context.Context, rule model.RoutingRule) (model.RoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Snapshot()
	idx := indexOfRule(current, rule.ID)
	if idx < 0 {
		return model.RoutingRule{}, fmt.Errorf("update rule %s: %w", rule.ID, model.ErrRuleNotFound)
	}
	rule = rule.Clone()
	rule.CreatedAt = current[idx].CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	if err := rule.Validate(); err != nil {
		return model.RoutingRule{}, err
	}

	next := make([]model.RoutingRule, len(current))
	copy(next, current)
	next[idx] = rule
	if err := checkSingleDefault(next); err != nil {
		return model.RoutingRule{}, fmt.Errorf("update rule %s: %w", rule.ID, err)
	}

	if s.repo != nil {
		if err := s.repo.Upsert(ctx, rule); err != nil {
			return model.RoutingRule{}, fmt.Errorf("persist rule %s: %w", rule.ID, err)
		}
	}
	s.publish(next)
	s.logger.Info("routing rule updated", "rule_id", rule.ID, "enabled", rule.Enabled)
	return rule.Clone(), nil
}

func (s *RuleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Snapshot()
	idx := indexOfRule(current, id)
	if idx < 0 {
		return fmt.Errorf("delete rule %s: %w", id, model.ErrRuleNotFound)
	}
	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete rule %s: %w", id, err)
		}
	}
	next := make([]model.RoutingRule, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	s.publish(next)
	s.logger.Info("routing rule deleted", "rule_id", id)
	return nil
}

// Replace swaps the whole rule set atomically. Every rule is validated first;
// on any error the current set is left untouched.
func (s *RuleStore) Replace(ctx context.Context, rules []model.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	seen := make(map[string]bool, len(rules))
	next := make([]model.RoutingRule, 0, len(rules))
	for _, r := range rules {
		r = r.Clone()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("replace rules: %w", err)
		}
		if seen[r.ID] {
			return fmt.Errorf("replace rules: %s: %w", r.ID, model.ErrRuleExists)
		}
		seen[r.ID] = true
		next = append(next, r)
	}
	if err := checkSingleDefault(next); err != nil {
		return fmt.Errorf("replace rules: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.ReplaceAll(ctx, next); err != nil {
			return fmt.Errorf("persist rules: %w", err)
		}
	}
	s.publish(next)
	s.logger.Info("routing rules replaced", "count", len(next))
	return nil
}

func (s *RuleStore) publish(rules []model.RoutingRule) {
	next := make([]model.RoutingRule, len(rules))
	copy(next, rules)
	s.snapshot.Store(&next)
}

func indexOfRule(rules []model.RoutingRule, id string) int {
	for i, r := range rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// checkSingleDefault rejects rule sets with more than one default rule.
func checkSingleDefault(rules []model.RoutingRule) error {
	var first string
	for _, r := range rules {
		if !r.IsDefault() {
			continue
		}
		if first != "" {
			return fmt.Errorf("%w: %s and %s", model.ErrDuplicateDefaultRule, first, r.ID)
		}
		first = r.ID
	}
	return nil
}
