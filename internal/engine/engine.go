// Package engine orchestrates one gating turn: parse, validate, gate, and
// stage transition. It is the only component the surrounding application
// calls.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sheetgate/sheetgate/internal/config"
	"github.com/sheetgate/sheetgate/internal/formula"
	"github.com/sheetgate/sheetgate/internal/gate"
	"github.com/sheetgate/sheetgate/internal/intercept"
	"github.com/sheetgate/sheetgate/internal/model"
	"github.com/sheetgate/sheetgate/internal/parser"
	"github.com/sheetgate/sheetgate/internal/state"
	"github.com/sheetgate/sheetgate/internal/validate"
)

// TurnResult is the outcome of one model turn. Exactly one of UserMessage
// and SystemMessage is populated: system messages are routed back to the
// model, user messages to the human.
type TurnResult struct {
	AllowFinish   bool
	UserMessage   string
	SystemMessage string
	Stage         model.Stage
	Checklist     model.Checklist
}

// Engine wires the parser, validation engine, state machine, completion
// gate, and interceptors into a single per-turn entry point.
type Engine struct {
	cfg       config.Config
	parser    *parser.Parser
	validator *validate.Engine
	machine   *state.Machine
	gate      *gate.Gate
	maxIter   *intercept.MaxIteration
	format    *intercept.Format
	selfRef   *intercept.SelfReference
	locks     *runLocks
	logger    zerolog.Logger
}

// New constructs an engine from configuration.
func New(cfg config.Config) *Engine {
	return &Engine{
		cfg:       cfg,
		parser:    parser.New(cfg.Platform()),
		validator: validate.NewEngine(formula.NewValidator()),
		machine:   state.NewMachine(),
		gate:      gate.New(),
		maxIter:   intercept.NewMaxIteration(),
		format:    intercept.NewFormat(),
		selfRef:   intercept.NewSelfReference(),
		locks:     newRunLocks(),
		logger:    log.With().Str("component", "engine").Logger(),
	}
}

// NewRun creates a run for one task attempt.
func (e *Engine) NewRun(userID, taskID string) (*model.Run, error) {
	id, err := newRunID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	maxIterations := e.cfg.Budgets.MaxIterations
	if maxIterations <= 0 {
		maxIterations = model.DefaultMaxIterations
	}
	run := &model.Run{
		ID:            id,
		UserID:        userID,
		TaskID:        taskID,
		Stage:         model.StageInit,
		MaxIterations: maxIterations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	e.logger.Info().Str("run_id", id).Str("task_id", taskID).Msg("run created")
	return run, nil
}

// HandleUserMessage records user input and spends one iteration.
func (e *Engine) HandleUserMessage(run *model.Run, text string) {
	unlock := e.locks.lock(run.ID)
	defer unlock()
	run.AppendMessage(model.RoleUser, text)
	run.Iteration++
}

// HandleModelOutput processes one model turn: interceptors, parse,
// validation, gate, and stage transition, strictly in that order.
func (e *Engine) HandleModelOutput(run *model.Run, text string) TurnResult {
	unlock := e.locks.lock(run.ID)
	defer unlock()

	startedAt := time.Now()
	var res TurnResult
	defer func() {
		e.logger.Info().
			Str("run_id", run.ID).
			Str("stage", string(run.Stage)).
			Bool("allow_finish", res.AllowFinish).
			Dur("duration", time.Since(startedAt)).
			Msg("turn finished")
	}()

	run.AppendMessage(model.RoleModel, text)
	run.LastOutput = text

	// 1. Iteration budget. Evaluated before the parser ever runs: further
	// automatic retries are judged unproductive, so the run is handed to
	// the human.
	if ic := e.maxIter.Intercept(run); ic != nil {
		res = e.finishTurn(run, TurnResult{UserMessage: ic.UserMessage})
		return res
	}

	// 2. Parse and check protocol shape.
	parseRes := e.parser.Parse(text)
	if ic := e.format.Intercept(parseRes); ic != nil {
		res = e.finishTurn(run, TurnResult{SystemMessage: ic.SystemMessage})
		return res
	}
	sub := parseRes.Submission

	// 3. Rule validation; self-referencing formulas get a targeted
	// redesign instruction instead of the generic template.
	report := e.validator.Validate(sub)
	run.Checklist = report.Checklist
	run.Validations = report.Results()
	if ic := e.selfRef.Intercept(report); ic != nil {
		res = e.finishTurn(run, TurnResult{SystemMessage: ic.SystemMessage})
		return res
	}

	// 4. Completion gate. Accepted artifacts replace the run's wholesale.
	gateRes := e.gate.Check(run, sub, report)
	run.Artifacts = sub.Artifacts
	run.Checklist = gateRes.Checklist
	run.Validations = append(report.Results(), gateRes.Validations...)

	if gateRes.Passed && report.AllPassed {
		// The two formula-derived flags are normalized on success: the gate
		// has already proven there is nothing left to object to.
		run.Checklist.SupportsAutoExpand = true
		run.Checklist.AvoidsSelfReference = true
		e.moveTo(run, model.StageVerified)
		if err := e.machine.Transition(run, model.StageDeployed); err != nil {
			e.logger.Error().Err(err).Str("run_id", run.ID).Msg("deploy transition rejected")
		}
		res = e.finishTurn(run, TurnResult{
			AllowFinish: true,
			UserMessage: e.successMessage(run, report),
		})
		return res
	}

	target := e.machine.NextStageAfterFail(run, gateRes.Checklist)
	e.moveTo(run, target)
	res = e.finishTurn(run, TurnResult{SystemMessage: forceContinueMessage(gateRes, report)})
	return res
}

// RunSummary renders the run's stage and checklist for diagnostics.
func (e *Engine) RunSummary(run *model.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (task %s)\n", run.ID, run.TaskID)
	fmt.Fprintf(&b, "stage: %s\n", run.Stage)
	fmt.Fprintf(&b, "iteration: %d/%d\n", run.Iteration, run.MaxIterations)
	fmt.Fprintf(&b, "artifacts: %d\n", len(run.Artifacts))
	b.WriteString("checklist:\n")
	for _, item := range run.Checklist.Items() {
		mark := "[ ]"
		if item.Done {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "  %s %s\n", mark, item.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) finishTurn(run *model.Run, res TurnResult) TurnResult {
	if res.SystemMessage != "" {
		run.AppendMessage(model.RoleSystem, res.SystemMessage)
	}
	res.Stage = run.Stage
	res.Checklist = run.Checklist
	return res
}

// moveTo walks the run one legal step at a time toward target. Single-step
// adjacency stays enforced by the machine; a sequence of legal steps is how
// the controller covers more distance.
func (e *Engine) moveTo(run *model.Run, target model.Stage) {
	order := model.Stages()
	index := func(s model.Stage) int {
		for i, stage := range order {
			if stage == s {
				return i
			}
		}
		return -1
	}
	for run.Stage != target {
		cur, want := index(run.Stage), index(target)
		if cur < 0 || want < 0 {
			return
		}
		next := order[cur+1]
		if want < cur {
			next = order[cur-1]
		}
		if err := e.machine.Transition(run, next); err != nil {
			e.logger.Debug().Err(err).Str("run_id", run.ID).Msg("stage move stopped")
			return
		}
	}
}

func (e *Engine) successMessage(run *model.Run, report validate.Report) string {
	var b strings.Builder
	b.WriteString("All completion requirements are satisfied; the task is deployed.\n")
	fmt.Fprintf(&b, "Artifacts accepted: %d\n", len(run.Artifacts))
	if len(report.Warnings) > 0 {
		b.WriteString("Non-blocking warnings:\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "- %s: %s\n", w.RuleID, w.Reason)
		}
	}
	b.WriteString(report.Summary)
	return b.String()
}

// forceContinueMessage renders the refusal sent back to the model. The gate
// wording is self-contained, so reasons and actions are passed through
// verbatim.
func forceContinueMessage(gateRes gate.Result, report validate.Report) string {
	var b strings.Builder
	b.WriteString("You may not declare this task finished yet.\n")
	if len(gateRes.FailReasons) > 0 {
		b.WriteString("Problems:\n")
		for _, reason := range gateRes.FailReasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
	}
	if len(gateRes.RequiredActions) > 0 {
		b.WriteString("Required actions:\n")
		for _, action := range gateRes.RequiredActions {
			fmt.Fprintf(&b, "- %s\n", action)
		}
	}
	for _, v := range report.CriticalFails {
		fmt.Fprintf(&b, "- fix %s: %s\n", v.RuleID, v.Reason)
	}
	if len(report.Warnings) > 0 {
		b.WriteString("Warnings (non-blocking):\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "- %s: %s\n", w.RuleID, w.Reason)
		}
	}
	b.WriteString("Address every item above, then resubmit the complete package.")
	return b.String()
}
