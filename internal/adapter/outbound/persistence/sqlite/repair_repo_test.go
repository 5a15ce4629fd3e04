package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonny/switchyard/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

func makeSummary(passID string, started time.Time) model.RepairSummary {
	p := model.NewProblem(model.ProblemConfiguration, "routing.rules", "no default rule", model.SeverityMedium, 75).Fixed()
	return model.RepairSummary{
		PassID:              passID,
		Outcome:             model.RepairRolledBack,
		FixedCount:          3,
		FailedCount:         2,
		SkippedCount:        1,
		TotalCount:          5,
		FailureRate:         40,
		RolledBack:          true,
		RestoredCheckpoints: 5,
		Attempts: []model.FixAttempt{
			{ProblemID: p.ID, ProblemName: p.Name, Status: model.ProblemFixed, CheckpointID: "ckpt_1", Duration: 150 * time.Millisecond},
			{ProblemID: "prob_2", ProblemName: "provider.openai.reachability", Status: model.ProblemFailed, Error: "fix timed out after 30s", TimedOut: true},
		},
		Problems:   []model.Problem{p},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
}

func TestRepairRepo_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewRepairRepo(store)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	if err := repo.Save(ctx, makeSummary("pass-1", started)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.GetByPassID(ctx, "pass-1")
	if err != nil {
		t.Fatalf("GetByPassID: %v", err)
	}
	if got.Outcome != model.RepairRolledBack || !got.RolledBack || got.FailureRate != 40 {
		t.Errorf("unexpected summary %+v", got)
	}
	if len(got.Attempts) != 2 || !got.Attempts[1].TimedOut || got.Attempts[0].Duration != 150*time.Millisecond {
		t.Errorf("Attempts: got %+v", got.Attempts)
	}
	if len(got.Problems) != 1 || got.Problems[0].Status != model.ProblemFixed {
		t.Errorf("Problems: got %+v", got.Problems)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt: got %s, want %s", got.StartedAt, started)
	}

	if _, err := repo.GetByPassID(ctx, "missing"); !errors.Is(err, model.ErrRepairNotFound) {
		t.Errorf("expected ErrRepairNotFound, got %v", err)
	}
	if err := repo.Save(ctx, makeSummary("pass-1", started)); err == nil {
		t.Error("expected duplicate pass id to be rejected")
	}
}

func TestRepairRepo_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewRepairRepo(store)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := repo.Save(ctx, makeSummary(fmt.Sprintf("pass-%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	page, err := repo.List(ctx, outbound.PageRequest{Page: 0, Size: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalCount != 5 || len(page.Items) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(page.Items), page.TotalCount)
	}
	if page.Items[0].PassID != "pass-4" || page.Items[1].PassID != "pass-3" {
		t.Errorf("expected newest first, got %s,%s", page.Items[0].PassID, page.Items[1].PassID)
	}

	last, _ := repo.List(ctx, outbound.PageRequest{Page: 2, Size: 2})
	if len(last.Items) != 1 || last.Items[0].PassID != "pass-0" {
		t.Errorf("expected final page with pass-0, got %+v", last.Items)
	}

	def, _ := repo.List(ctx, outbound.PageRequest{})
	if def.Size != 20 || len(def.Items) != 5 {
		t.Errorf("expected default page size 20, got %d (%d items)", def.Size, len(def.Items))
	}
}
