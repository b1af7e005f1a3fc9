// Package model defines the data model for the completion-gating engine:
// runs, stages, artifacts, submissions, checklists, and rule validations.
package model

import "time"

// DefaultMaxIterations is the hard iteration ceiling applied to new runs
// unless the host configures another budget.
const DefaultMaxIterations = 8

// Role identifies the author of a turn message.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// TurnMessage is one entry in a run's append-only history.
type TurnMessage struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Run is the mutable container for one task attempt. It is created once per
// task, mutated in place every turn, and never deleted, only abandoned.
// Callers must serialize turns by run identity; the engine assumes at most
// one in-flight turn per run.
type Run struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	TaskID        string        `json:"task_id"`
	Stage         Stage         `json:"stage"`
	Iteration     int           `json:"iteration"`
	MaxIterations int           `json:"max_iterations"`
	Artifacts     []Artifact    `json:"artifacts,omitempty"`
	Checklist     Checklist     `json:"checklist"`
	Validations   []Validation  `json:"validations,omitempty"`
	LastOutput    string        `json:"last_output,omitempty"`
	History       []TurnMessage `json:"history,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// AppendMessage records a turn message in the run history.
func (r *Run) AppendMessage(role Role, content string) {
	now := time.Now().UTC()
	r.History = append(r.History, TurnMessage{Role: role, Content: content, At: now})
	r.UpdatedAt = now
}

// BudgetExhausted reports whether the iteration ceiling has been reached.
func (r *Run) BudgetExhausted() bool {
	return r.Iteration >= r.MaxIterations
}
