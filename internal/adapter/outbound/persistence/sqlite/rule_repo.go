package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// RuleRepo implements outbound.RuleRepository using SQLite. Rules keep the
// position they were first inserted at; ReplaceAll renumbers them.
type RuleRepo struct {
	db *sql.DB
}

var _ outbound.RuleRepository = (*RuleRepo)(nil)

func NewRuleRepo(store *Store) *RuleRepo {
	return &RuleRepo{db: store.DB}
}

const ruleColumns = `id, name, description, enabled, priority, conditions, action, created_at, updated_at`

func (r *RuleRepo) List(ctx context.Context) ([]model.RoutingRule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM routing_rules ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying routing rules: %w", err)
	}
	defer rows.Close()

	var rules []model.RoutingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning routing rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routing rules: %w", err)
	}
	return rules, nil
}

func (r *RuleRepo) Upsert(ctx context.Context, rule model.RoutingRule) error {
	conditions, action, err := marshalRule(rule)
	if err != nil {
		return err
	}

	const q = `INSERT INTO routing_rules
		(id, position, name, description, enabled, priority, conditions, action, created_at, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM routing_rules), ?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			description=excluded.description,
			enabled=excluded.enabled,
			priority=excluded.priority,
			conditions=excluded.conditions,
			action=excluded.action,
			updated_at=excluded.updated_at`

	_, err = r.db.ExecContext(ctx, q,
		rule.ID, rule.Name, rule.Description, rule.Enabled, rule.Priority,
		conditions, action, rule.CreatedAt.UTC(), rule.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting routing rule %s: %w", rule.ID, err)
	}
	return nil
}

func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM routing_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting routing rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting routing rule %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("deleting routing rule %s: %w", id, model.ErrRuleNotFound)
	}
	return nil
}

// ReplaceAll swaps the stored set in one transaction.
func (r *RuleRepo) ReplaceAll(ctx context.Context, rules []model.RoutingRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting rule replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM routing_rules`); err != nil {
		return fmt.Errorf("clearing routing rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO routing_rules
		(id, position, name, description, enabled, priority, conditions, action, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("preparing rule insert: %w", err)
	}
	defer stmt.Close()

	for i, rule := range rules {
		conditions, action, err := marshalRule(rule)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			rule.ID, i+1, rule.Name, rule.Description, rule.Enabled, rule.Priority,
			conditions, action, rule.CreatedAt.UTC(), rule.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("inserting routing rule %s: %w", rule.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rule replace: %w", err)
	}
	return nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func marshalRule(rule model.RoutingRule) (string, string, error) {
	conditions := rule.Conditions
	if conditions == nil {
		conditions = []model.Condition{}
	}
	c, err := json.Marshal(conditions)
	if err != nil {
		return "", "", fmt.Errorf("marshaling conditions of %s: %w", rule.ID, err)
	}
	a, err := json.Marshal(rule.Action)
	if err != nil {
		return "", "", fmt.Errorf("marshaling action of %s: %w", rule.ID, err)
	}
	return string(c), string(a), nil
}

func scanRule(s rowScanner) (model.RoutingRule, error) {
	var rule model.RoutingRule
	var conditionsJSON, actionJSON string

	err := s.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Enabled, &rule.Priority,
		&conditionsJSON, &actionJSON, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return model.RoutingRule{}, err
	}
	if err := json.Unmarshal([]byte(conditionsJSON), &rule.Conditions); err != nil {
		return model.RoutingRule{}, fmt.Errorf("decoding conditions of %s: %w", rule.ID, err)
	}
	if len(rule.Conditions) == 0 {
		rule.Conditions = nil
	}
	if err := json.Unmarshal([]byte(actionJSON), &rule.Action); err != nil {
		return model.RoutingRule{}, fmt.Errorf("decoding action of %s: %w", rule.ID, err)
	}
	return rule, nil
}
