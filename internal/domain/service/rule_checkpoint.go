package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

const ruleCheckpointBackend = "rules"

// RuleCheckpointer snapshots the rule set in memory before a fix. Only the
// newest limit snapshots are kept.
type RuleCheckpointer struct {
	store  *RuleStore
	limit  int
	logger *slog.Logger

	mu        sync.Mutex
	order     []string
	snapshots map[string][]model.RoutingRule
}

var _ outbound.Checkpointer = (*RuleCheckpointer)(nil)

func NewRuleCheckpointer(store *RuleStore, limit int, logger *slog.Logger) *RuleCheckpointer {
	if limit < 1 {
		limit = 64
	}
	return &RuleCheckpointer{
		store:     store,
		limit:     limit,
		logger:    logger,
		snapshots: make(map[string][]model.RoutingRule),
	}
}

func (c *RuleCheckpointer) Create(_ context.Context, p model.Problem) (model.Checkpoint, error) {
	cp := model.NewCheckpoint(p.ID, ruleCheckpointBackend)
	snapshot := c.store.List()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[cp.ID] = snapshot
	c.order = append(c.order, cp.ID)
	for len(c.order) > c.limit {
		evicted := c.order[0]
		c.order = c.order[1:]
		delete(c.snapshots, evicted)
	}
	c.logger.Debug("rule checkpoint created", "checkpoint_id", cp.ID, "problem_id", p.ID, "rules", len(snapshot))
	return cp, nil
}

func (c *RuleCheckpointer) Restore(ctx context.Context, cp model.Checkpoint) error {
	c.mu.Lock()
	snapshot, ok := c.snapshots[cp.ID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("restore %s: %w", cp.ID, model.ErrCheckpointNotFound)
	}
	if err := c.store.Replace(ctx, snapshot); err != nil {
		return fmt.Errorf("restore %s: %w", cp.ID, err)
	}
	c.logger.Info("rule checkpoint restored", "checkpoint_id", cp.ID, "rules", len(snapshot))
	return nil
}
