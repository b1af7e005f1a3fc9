// Package gate decides whether a run may finish. It turns a submission plus
// its validation report into a checklist verdict with self-contained,
// actionable reasons; the controller renders its refusal message by
// concatenating FailReasons and RequiredActions verbatim.
package gate

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sheetgate/sheetgate/internal/model"
	"github.com/sheetgate/sheetgate/internal/validate"
)

// Gate check rule ids.
const (
	RuleIDArtifactPresent = "G1_ARTIFACT_PRESENT"
	RuleIDPlacement       = "G2_PLACEMENT"
	RuleIDAcceptanceTests = "G3_ACCEPTANCE_TESTS"
	RuleIDFallback        = "G4_FALLBACK"
	RuleIDDeployNotes     = "G5_DEPLOY_NOTES"
)

// Result is the gate's verdict for one submission.
type Result struct {
	Passed          bool
	Checklist       model.Checklist
	Validations     []model.Validation
	FailReasons     []string
	RequiredActions []string
}

// Gate runs the completion checks.
type Gate struct {
	logger zerolog.Logger
}

// New constructs a Gate.
func New() *Gate {
	return &Gate{logger: log.With().Str("component", "gate").Logger()}
}

type check struct {
	id             string
	name           string
	ok             bool
	failReason     string
	requiredAction string
}

// Check runs the completion checks against the submission and its report.
// Passed holds only when the derived checklist is fully true and none of
// the checks failed.
func (g *Gate) Check(run *model.Run, sub *model.Submission, report validate.Report) Result {
	checklist := validate.DeriveChecklist(sub, report.Results())

	unplaced := 0
	for _, a := range sub.Artifacts {
		if !a.HasPlacement() {
			unplaced++
		}
	}

	checks := []check{
		{
			id:             RuleIDArtifactPresent,
			name:           "artifact present",
			ok:             len(sub.Artifacts) > 0 && checklist.HasExecutableArtifact,
			failReason:     "no executable artifact was submitted",
			requiredAction: "provide at least one artifact whose content the spreadsheet can evaluate (a formula starting with '=')",
		},
		{
			id:             RuleIDPlacement,
			name:           "artifact placement",
			ok:             len(sub.Artifacts) > 0 && unplaced == 0,
			failReason:     fmt.Sprintf("%d artifact(s) have no placement information", unplaced),
			requiredAction: "give every artifact a target sheet, cell, range, or column",
		},
		{
			id:             RuleIDAcceptanceTests,
			name:           "acceptance tests",
			ok:             len(sub.AcceptanceTests) >= validate.MinAcceptanceTests,
			failReason:     fmt.Sprintf("only %d acceptance test(s) were submitted", len(sub.AcceptanceTests)),
			requiredAction: fmt.Sprintf("provide at least %d acceptance tests", validate.MinAcceptanceTests),
		},
		{
			id:             RuleIDFallback,
			name:           "fallback plan",
			ok:             len(sub.Fallbacks) > 0,
			failReason:     "no fallback plan was submitted",
			requiredAction: "provide at least one fallback plan as an 'if <condition> then <action>' pair",
		},
		{
			id:             RuleIDDeployNotes,
			name:           "deploy notes",
			ok:             sub.HasDeployNotes(),
			failReason:     "deploy notes are missing or empty",
			requiredAction: "provide deploy notes covering protected ranges, naming conventions, or permissions",
		},
	}

	result := Result{Checklist: checklist}
	for _, c := range checks {
		val := model.Validation{
			RuleID:   c.id,
			RuleName: c.name,
			Category: model.RuleStructural,
			Status:   model.StatusPass,
		}
		if !c.ok {
			val.Status = model.StatusFail
			val.Reason = c.failReason
			result.FailReasons = append(result.FailReasons, c.failReason)
			result.RequiredActions = append(result.RequiredActions, c.requiredAction)
		}
		result.Validations = append(result.Validations, val)
	}
	result.Passed = checklist.Complete() && len(result.FailReasons) == 0

	g.logger.Debug().
		Str("run_id", run.ID).
		Bool("passed", result.Passed).
		Int("fail_reasons", len(result.FailReasons)).
		Msg("completion gate evaluated")
	return result
}
