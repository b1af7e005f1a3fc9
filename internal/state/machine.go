// Package state owns the run's stage and the only legal stage transitions.
// It holds adjacency only; every "why" decision lives in the gate.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sheetgate/sheetgate/internal/model"
)

// ErrIllegalTransition is returned when a requested stage is not adjacent
// to the run's current stage.
var ErrIllegalTransition = errors.New("illegal stage transition")

// transitions maps each stage to its allowed targets: one step forward,
// and one step backward for redo (never out of Init or Deployed).
var transitions = map[model.Stage][]model.Stage{
	model.StageInit:     {model.StageAnalyzed},
	model.StageAnalyzed: {model.StageDesigned, model.StageInit},
	model.StageDesigned: {model.StageExecuted, model.StageAnalyzed},
	model.StageExecuted: {model.StageVerified, model.StageDesigned},
	model.StageVerified: {model.StageDeployed, model.StageExecuted},
	model.StageDeployed: {},
}

// Machine enforces stage adjacency for runs.
type Machine struct {
	logger zerolog.Logger
}

// NewMachine constructs a stage machine.
func NewMachine() *Machine {
	return &Machine{logger: log.With().Str("component", "state").Logger()}
}

// CanTransition reports whether target is reachable from current in one
// legal step.
func (m *Machine) CanTransition(current, target model.Stage) bool {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition moves the run to target if the move is legal, stamping the
// update time. An illegal move returns ErrIllegalTransition and leaves the
// run's stage unchanged.
func (m *Machine) Transition(run *model.Run, target model.Stage) error {
	if !m.CanTransition(run.Stage, target) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, run.Stage, target)
	}
	m.logger.Debug().
		Str("run_id", run.ID).
		Str("from", string(run.Stage)).
		Str("to", string(target)).
		Msg("stage transition")
	run.Stage = target
	run.UpdatedAt = time.Now().UTC()
	return nil
}

// NextStageAfterFail picks the regression target after a failed gate check.
// With no executable artifact there is nothing to verify, so the run goes
// back to Designed; otherwise the deliverable exists but failed checks, so
// only the execution is redone.
func (m *Machine) NextStageAfterFail(run *model.Run, checklist model.Checklist) model.Stage {
	if !checklist.HasExecutableArtifact {
		return model.StageDesigned
	}
	return model.StageExecuted
}

// CanFinish reports whether the run has reached its terminal stage.
func (m *Machine) CanFinish(run *model.Run) bool {
	return run.Stage == model.StageDeployed
}
