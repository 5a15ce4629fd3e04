package model

import "time"

type RepairState string

const (
	RepairIdle       RepairState = "idle"
	RepairRunning    RepairState = "running"
	RepairCompleted  RepairState = "completed"
	RepairRolledBack RepairState = "rolled_back"
)

type FixAttempt struct {
	ProblemID    string        `json:"problem_id"`
	ProblemName  string        `json:"problem_name"`
	Status       ProblemStatus `json:"status"`
	CheckpointID string        `json:"checkpoint_id,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	TimedOut     bool          `json:"timed_out"`
}

type RepairSummary struct {
	PassID              string       `json:"pass_id"`
	Outcome             RepairState  `json:"outcome"`
	FixedCount          int          `json:"fixed_count"`
	FailedCount         int          `json:"failed_count"`
	SkippedCount        int          `json:"skipped_count"`
	TotalCount          int          `json:"total_count"`
	FailureRate         float64      `json:"failure_rate"`
	RolledBack          bool         `json:"rolled_back"`
	RestoredCheckpoints int          `json:"restored_checkpoints"`
	Attempts            []FixAttempt `json:"attempts"`
	Problems            []Problem    `json:"problems"`
	StartedAt           time.Time    `json:"started_at"`
	FinishedAt          time.Time    `json:"finished_at"`
}

// FailurePercent returns failed/total*100, or 0 when nothing was processed.
func FailurePercent(failed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total) * 100
}

// Checkpoint is the handle returned by a checkpointer before a fix.
type Checkpoint struct {
	ID        string    `json:"id"`
	ProblemID string    `json:"problem_id"`
	Backend   string    `json:"backend"`
	CreatedAt time.Time `json:"created_at"`
}

func NewCheckpoint(problemID, backend string) Checkpoint {
	return Checkpoint{
		ID:        NewID("ckpt_"),
		ProblemID: problemID,
		Backend:   backend,
		CreatedAt: time.Now().UTC(),
	}
}
