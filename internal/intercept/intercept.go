// Package intercept holds the three short-circuit checks evaluated, in
// fixed order, before the completion gate runs: iteration budget, protocol
// format, and self-referencing formulas.
package intercept

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sheetgate/sheetgate/internal/model"
	"github.com/sheetgate/sheetgate/internal/parser"
	"github.com/sheetgate/sheetgate/internal/validate"
)

// SubmissionTemplate is the exact six-section template re-issued to the
// model on a format defect.
const SubmissionTemplate = `[STATE]
current_state=<StageName>
next_state=<StageName>

[ARTIFACTS]
- type=<FORMULA|STEPS|TEMPLATE|SCHEMA_PLAN> platform=<excel|google_sheets> target_sheet=<name> target_range=<addr> content=<text>

[ACCEPTANCE_TESTS]
1) <description>
2) <description>
3) <description>

[FALLBACK]
- if <condition> then <action>

[DEPLOY_NOTES]
- protect_ranges: <comma list>
- naming_conventions: <comma list>
- permissions: <comma list>

[NEXT_ACTION]
- system_will_validate: <text>
- user_needs_to_provide: <text>
- if_fail_agent_will: <text>`

// Interception aborts a turn before the gate runs. Exactly one of
// UserMessage/SystemMessage is set: system messages go back to the model,
// user messages to the human. Terminal interceptions expect no retry.
type Interception struct {
	UserMessage   string
	SystemMessage string
	Terminal      bool
}

// MaxIteration is the hard backstop against infinite retry loops. Once the
// iteration budget is spent the run is handed to the human instead of being
// retried.
type MaxIteration struct {
	logger zerolog.Logger
}

// NewMaxIteration constructs the budget interceptor.
func NewMaxIteration() *MaxIteration {
	return &MaxIteration{logger: log.With().Str("component", "intercept").Logger()}
}

// Intercept stops the turn when the run's iteration budget is exhausted.
func (i *MaxIteration) Intercept(run *model.Run) *Interception {
	if !run.BudgetExhausted() {
		return nil
	}
	i.logger.Warn().
		Str("run_id", run.ID).
		Int("iteration", run.Iteration).
		Int("max_iterations", run.MaxIterations).
		Msg("iteration budget exhausted")

	var b strings.Builder
	fmt.Fprintf(&b, "The task could not be completed within %d iterations.\n", run.MaxIterations)
	if missing := run.Checklist.Missing(); len(missing) > 0 {
		b.WriteString("Still unresolved:\n")
		for _, item := range missing {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	b.WriteString("Please review the progress so far and either finish the remaining items manually or restart the task with adjusted requirements.")
	return &Interception{UserMessage: b.String(), Terminal: true}
}

// Format rejects turns whose output is not a usable submission: missing
// protocol sections, too few acceptance tests, or no next-action block.
type Format struct {
	logger zerolog.Logger
}

// NewFormat constructs the format interceptor.
func NewFormat() *Format {
	return &Format{logger: log.With().Str("component", "intercept").Logger()}
}

// Intercept re-issues the template when the parse result is unusable.
func (i *Format) Intercept(res parser.Result) *Interception {
	var defects []string
	if !res.Success {
		defects = append(defects, "missing required sections: "+strings.Join(res.MissingBlocks, ", "))
	} else {
		if len(res.Submission.AcceptanceTests) < validate.MinAcceptanceTests {
			defects = append(defects, fmt.Sprintf("only %d acceptance tests (need at least %d)", len(res.Submission.AcceptanceTests), validate.MinAcceptanceTests))
		}
		if res.Submission.NextAction == nil {
			defects = append(defects, "missing "+parser.MarkerNextAction+" block")
		}
	}
	if len(defects) == 0 {
		return nil
	}
	i.logger.Debug().Strs("defects", defects).Msg("format interceptor tripped")

	var b strings.Builder
	b.WriteString("Your submission is not acceptable yet:\n")
	for _, d := range defects {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	b.WriteString("\nResubmit using exactly this template, filling every section:\n\n")
	b.WriteString(SubmissionTemplate)
	return &Interception{SystemMessage: b.String()}
}

// SelfReference short-circuits with a targeted redesign instruction when the
// validation report contains a self-reference failure. The generic template
// would not help here; the formula itself must change.
type SelfReference struct {
	logger zerolog.Logger
}

// NewSelfReference constructs the self-reference interceptor.
func NewSelfReference() *SelfReference {
	return &SelfReference{logger: log.With().Str("component", "intercept").Logger()}
}

// Intercept emits a redesign message when any critical fail is a
// self-reference violation.
func (i *SelfReference) Intercept(report validate.Report) *Interception {
	if !report.HasFailCategory(model.RuleSelfReference) {
		return nil
	}

	var b strings.Builder
	b.WriteString("A submitted formula references its own target column, which would break recalculation:\n")
	for _, v := range report.CriticalFails {
		if v.Category != model.RuleSelfReference {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", v.RuleID, v.Reason)
	}
	b.WriteString("Redesign the formula so it only reads from other columns, then resubmit the full package.")
	i.logger.Debug().Msg("self-reference interceptor tripped")
	return &Interception{SystemMessage: b.String()}
}
