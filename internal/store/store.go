// Package store persists run records, turn transcripts, and gate events for
// the CLI host. The engine itself keeps runs in memory; this store only
// records what happened so runs survive between CLI invocations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sheetgate/sheetgate/internal/model"
)

// RunStatus is the host-side lifecycle of a stored run.
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusDeployed RunStatus = "deployed"
	StatusStopped  RunStatus = "stopped"
)

// Event is a timeline entry for a run.
type Event struct {
	Type    string
	Message string
}

// RunRecord is one row of the run listing.
type RunRecord struct {
	RunID     string
	UserID    string
	TaskID    string
	Stage     model.Stage
	Iteration int
	MaxIter   int
	Status    RunStatus
	UpdatedAt string
}

// Store provides persistence for runs, turns, and events.
type Store struct {
	db *sql.DB
}

// New creates a store over an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRun inserts the run record and a run_created event.
func (s *Store) CreateRun(ctx context.Context, run *model.Run) error {
	checklist, err := json.Marshal(run.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin create run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs(run_id, user_id, task_id, created_at, updated_at, stage, iteration, max_iterations, status, checklist_json, last_output)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, run.TaskID,
		run.CreatedAt.UTC().Format(time.RFC3339), run.UpdatedAt.UTC().Format(time.RFC3339),
		string(run.Stage), run.Iteration, run.MaxIterations, string(StatusRunning), string(checklist), run.LastOutput); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}
	if err := insertEvent(ctx, tx, run.ID, "run_created", "run created"); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}
	return nil
}

// SaveRun writes the run's mutable fields, appends any history messages not
// yet stored, and records an optional event, all in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *model.Run, status RunStatus, event *Event) error {
	checklist, err := json.Marshal(run.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET updated_at=?, stage=?, iteration=?, status=?, checklist_json=?, last_output=? WHERE run_id=?`,
		run.UpdatedAt.UTC().Format(time.RFC3339), string(run.Stage), run.Iteration,
		string(status), string(checklist), run.LastOutput, run.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run: %w", err)
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE run_id=?`, run.ID).Scan(&stored); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("count turns: %w", err)
	}
	for seq := stored; seq < len(run.History); seq++ {
		msg := run.History[seq]
		if _, err := tx.ExecContext(ctx, `INSERT INTO turns(run_id, seq, role, content, at) VALUES(?, ?, ?, ?, ?)`,
			run.ID, seq, string(msg.Role), msg.Content, msg.At.UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if event != nil {
		if err := insertEvent(ctx, tx, run.ID, event.Type, event.Message); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

// StopRun marks a still-running run stopped and records why. Stopped runs
// accept no further turns.
func (s *Store) StopRun(ctx context.Context, runID, reason string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin stop run: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE runs SET status=?, updated_at=? WHERE run_id=? AND status=?`,
		string(StatusStopped), time.Now().UTC().Format(time.RFC3339), runID, string(StatusRunning))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("stop run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("stop run: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("run %s is not running", runID)
	}
	if err := insertEvent(ctx, tx, runID, "run_stopped", reason); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stop run: %w", err)
	}
	return nil
}

// GetRun loads a run, its status, and its full turn history.
func (s *Store) GetRun(ctx context.Context, runID string) (*model.Run, RunStatus, error) {
	var (
		run       model.Run
		status    string
		stage     string
		created   string
		updated   string
		checklist string
	)
	err := s.db.QueryRowContext(ctx, `SELECT run_id, user_id, task_id, created_at, updated_at, stage, iteration, max_iterations, status, checklist_json, last_output
		FROM runs WHERE run_id=?`, runID).Scan(
		&run.ID, &run.UserID, &run.TaskID, &created, &updated, &stage,
		&run.Iteration, &run.MaxIterations, &status, &checklist, &run.LastOutput)
	if err != nil {
		return nil, "", fmt.Errorf("load run %s: %w", runID, err)
	}
	run.Stage = model.Stage(stage)
	run.CreatedAt, _ = time.Parse(time.RFC3339, created)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	if err := json.Unmarshal([]byte(checklist), &run.Checklist); err != nil {
		return nil, "", fmt.Errorf("unmarshal checklist: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT role, content, at FROM turns WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, "", fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			role    string
			content string
			at      string
		)
		if err := rows.Scan(&role, &content, &at); err != nil {
			return nil, "", fmt.Errorf("scan turn: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339, at)
		run.History = append(run.History, model.TurnMessage{Role: model.Role(role), Content: content, At: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate turns: %w", err)
	}
	return &run, RunStatus(status), nil
}

// ListRuns returns all stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, user_id, task_id, stage, iteration, max_iterations, status, updated_at
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec   RunRecord
			stage string
			stat  string
		)
		if err := rows.Scan(&rec.RunID, &rec.UserID, &rec.TaskID, &stage, &rec.Iteration, &rec.MaxIter, &stat, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Stage = model.Stage(stage)
		rec.Status = RunStatus(stat)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, runID, eventType, message string) error {
	at := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `INSERT INTO events(run_id, at, type, message) VALUES(?, ?, ?, ?)`,
		runID, at, eventType, message); err != nil {
		return fmt.Errorf("insert event %s: %w", eventType, err)
	}
	return nil
}
