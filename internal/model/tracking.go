package model

import "time"

// Run statuses
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// RunRecord represents a stored run with its options and outcome
type RunRecord struct {
	ID        string      `json:"id"`
	Tool      Tool        `json:"tool"`
	Status    string      `json:"status"`
	Options   Options     `json:"options"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// ErrorDetail represents a recorded run error with context
type ErrorDetail struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Fatal     bool      `json:"fatal"`
	Timestamp time.Time `json:"timestamp"`
}
