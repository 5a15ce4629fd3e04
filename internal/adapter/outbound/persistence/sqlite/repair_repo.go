package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// RepairRepo implements outbound.RepairHistoryRepository using SQLite.
type RepairRepo struct {
	db *sql.DB
}

var _ outbound.RepairHistoryRepository = (*RepairRepo)(nil)

func NewRepairRepo(store *Store) *RepairRepo {
	return &RepairRepo{db: store.DB}
}

const repairColumns = `pass_id, outcome, fixed_count, failed_count, skipped_count, total_count,
	failure_rate, rolled_back, restored_checkpoints, attempts, problems, started_at, finished_at`

func (r *RepairRepo) Save(ctx context.Context, s model.RepairSummary) error {
	attempts, err := json.Marshal(nonNil(s.Attempts))
	if err != nil {
		return fmt.Errorf("marshaling attempts: %w", err)
	}
	problems, err := json.Marshal(nonNil(s.Problems))
	if err != nil {
		return fmt.Errorf("marshaling problems: %w", err)
	}

	q := `INSERT INTO repair_passes (` + repairColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, q,
		s.PassID, string(s.Outcome),
		s.FixedCount, s.FailedCount, s.SkippedCount, s.TotalCount,
		s.FailureRate, s.RolledBack, s.RestoredCheckpoints,
		string(attempts), string(problems),
		s.StartedAt.UTC(), s.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting repair pass %s: %w", s.PassID, err)
	}
	return nil
}

func (r *RepairRepo) GetByPassID(ctx context.Context, passID string) (model.RepairSummary, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+repairColumns+` FROM repair_passes WHERE pass_id = ?`, passID)
	s, err := scanRepair(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RepairSummary{}, fmt.Errorf("repair pass %s: %w", passID, model.ErrRepairNotFound)
	}
	if err != nil {
		return model.RepairSummary{}, fmt.Errorf("fetching repair pass: %w", err)
	}
	return s, nil
}

// List returns passes newest first. Page is zero based.
func (r *RepairRepo) List(ctx context.Context, page outbound.PageRequest) (outbound.PageResult[model.RepairSummary], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM repair_passes`).Scan(&total); err != nil {
		return outbound.PageResult[model.RepairSummary]{}, fmt.Errorf("counting repair passes: %w", err)
	}

	size := page.Size
	if size <= 0 {
		size = 20
	}
	offset := page.Page * size
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+repairColumns+` FROM repair_passes ORDER BY started_at DESC, pass_id ASC LIMIT ? OFFSET ?`,
		size, offset)
	if err != nil {
		return outbound.PageResult[model.RepairSummary]{}, fmt.Errorf("listing repair passes: %w", err)
	}
	defer rows.Close()

	var items []model.RepairSummary
	for rows.Next() {
		s, err := scanRepair(rows)
		if err != nil {
			return outbound.PageResult[model.RepairSummary]{}, fmt.Errorf("scanning repair pass: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return outbound.PageResult[model.RepairSummary]{}, fmt.Errorf("iterating repair passes: %w", err)
	}

	return outbound.PageResult[model.RepairSummary]{
		Items:      items,
		TotalCount: total,
		Page:       page.Page,
		Size:       size,
	}, nil
}

func scanRepair(s rowScanner) (model.RepairSummary, error) {
	var out model.RepairSummary
	var outcome, attemptsJSON, problemsJSON string

	err := s.Scan(
		&out.PassID, &outcome,
		&out.FixedCount, &out.FailedCount, &out.SkippedCount, &out.TotalCount,
		&out.FailureRate, &out.RolledBack, &out.RestoredCheckpoints,
		&attemptsJSON, &problemsJSON,
		&out.StartedAt, &out.FinishedAt,
	)
	if err != nil {
		return model.RepairSummary{}, err
	}
	out.Outcome = model.RepairState(outcome)
	if err := json.Unmarshal([]byte(attemptsJSON), &out.Attempts); err != nil {
		out.Attempts = nil
	}
	if err := json.Unmarshal([]byte(problemsJSON), &out.Problems); err != nil {
		out.Problems = nil
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
