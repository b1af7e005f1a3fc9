// Package validate aggregates rule verdicts over a whole submission into a
// single report and derives the canonical completion checklist.
package validate

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sheetgate/sheetgate/internal/formula"
	"github.com/sheetgate/sheetgate/internal/model"
)

// RuleIDStructural identifies the structural completeness check. It
// intentionally overlaps the completion gate's checks so that a broken
// submission trips two independent signals.
const RuleIDStructural = "S1_STRUCTURAL"

// MinAcceptanceTests is the smallest acceptance-test count a submission may
// carry and still finish.
const MinAcceptanceTests = 3

// Report is the aggregated outcome of validating one submission.
type Report struct {
	AllPassed     bool
	CriticalFails []model.Validation
	Warnings      []model.Validation
	Passes        []model.Validation
	Checklist     model.Checklist
	Summary       string
}

// Results returns every validation in partition order.
func (r Report) Results() []model.Validation {
	out := make([]model.Validation, 0, len(r.CriticalFails)+len(r.Warnings)+len(r.Passes))
	out = append(out, r.CriticalFails...)
	out = append(out, r.Warnings...)
	out = append(out, r.Passes...)
	return out
}

// HasFailCategory reports whether any critical fail carries the category.
func (r Report) HasFailCategory(category model.RuleCategory) bool {
	for _, v := range r.CriticalFails {
		if v.Category == category {
			return true
		}
	}
	return false
}

// Engine runs the formula validator over every artifact and aggregates.
type Engine struct {
	validator *formula.Validator
	logger    zerolog.Logger
}

// NewEngine constructs a validation engine around a formula validator.
func NewEngine(validator *formula.Validator) *Engine {
	return &Engine{
		validator: validator,
		logger:    log.With().Str("component", "validate").Logger(),
	}
}

// Validate runs every rule over every artifact, adds the structural
// completeness check, partitions the results, and derives the checklist.
func (e *Engine) Validate(sub *model.Submission) Report {
	var results []model.Validation
	for _, artifact := range sub.Artifacts {
		results = append(results, e.validator.Validate(artifact)...)
	}
	results = append(results, structuralCheck(sub))

	report := Report{Checklist: DeriveChecklist(sub, results)}
	for _, v := range results {
		switch v.Status {
		case model.StatusFail:
			report.CriticalFails = append(report.CriticalFails, v)
		case model.StatusWarn:
			report.Warnings = append(report.Warnings, v)
		default:
			report.Passes = append(report.Passes, v)
		}
	}
	report.AllPassed = len(report.CriticalFails) == 0
	report.Summary = renderSummary(report)

	e.logger.Debug().
		Int("fails", len(report.CriticalFails)).
		Int("warnings", len(report.Warnings)).
		Int("passes", len(report.Passes)).
		Bool("all_passed", report.AllPassed).
		Msg("submission validated")
	return report
}

// structuralCheck verifies artifact/test/fallback/deploy-note presence in
// one validation.
func structuralCheck(sub *model.Submission) model.Validation {
	var missing []string
	if len(sub.Artifacts) == 0 {
		missing = append(missing, "artifacts")
	}
	if len(sub.AcceptanceTests) < MinAcceptanceTests {
		missing = append(missing, fmt.Sprintf("acceptance tests (%d of %d)", len(sub.AcceptanceTests), MinAcceptanceTests))
	}
	if len(sub.Fallbacks) == 0 {
		missing = append(missing, "fallback plan")
	}
	if !sub.HasDeployNotes() {
		missing = append(missing, "deploy notes")
	}

	val := model.Validation{
		RuleID:   RuleIDStructural,
		RuleName: "structural completeness",
		Category: model.RuleStructural,
		Status:   model.StatusPass,
	}
	if len(missing) > 0 {
		val.Status = model.StatusFail
		val.Reason = "submission is missing: " + strings.Join(missing, ", ")
		val.Details = map[string]any{"missing": missing}
	}
	return val
}

// DeriveChecklist is the single canonical derivation of the seven-property
// checklist. The validation engine, the completion gate, and the controller
// all derive their checklist here; no call site recomputes the flags with
// its own logic.
//
// The formula-rule flags read the supplied results: a self-reference FAIL
// clears AvoidsSelfReference, and SupportsAutoExpand holds when either an
// auto-expand construct was recognized or no hard-coded bound was flagged.
func DeriveChecklist(sub *model.Submission, results []model.Validation) model.Checklist {
	autoExpandPass := false
	openRangeWarn := false
	selfRefFail := false
	for _, v := range results {
		switch v.Category {
		case model.RuleAutoExpand:
			if v.Status == model.StatusPass {
				autoExpandPass = true
			}
		case model.RuleOpenRange:
			if v.Status == model.StatusWarn {
				openRangeWarn = true
			}
		case model.RuleSelfReference:
			if v.Status == model.StatusFail {
				selfRefFail = true
			}
		}
	}

	allPlaced := len(sub.Artifacts) > 0
	for _, a := range sub.Artifacts {
		if !a.HasPlacement() {
			allPlaced = false
			break
		}
	}

	return model.Checklist{
		HasExecutableArtifact: sub.HasExecutableArtifact(),
		AllArtifactsPlaced:    allPlaced,
		SupportsAutoExpand:    autoExpandPass || !openRangeWarn,
		AvoidsSelfReference:   !selfRefFail,
		HasAcceptanceTests:    len(sub.AcceptanceTests) >= MinAcceptanceTests,
		HasFallbackPlan:       len(sub.Fallbacks) > 0,
		HasDeployNotes:        sub.HasDeployNotes(),
	}
}

func renderSummary(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "validation: %d passed, %d warnings, %d failed\n", len(r.Passes), len(r.Warnings), len(r.CriticalFails))
	for _, v := range r.CriticalFails {
		fmt.Fprintf(&b, "FAIL %s (%s): %s\n", v.RuleID, v.RuleName, v.Reason)
	}
	for _, v := range r.Warnings {
		fmt.Fprintf(&b, "WARN %s (%s): %s\n", v.RuleID, v.RuleName, v.Reason)
	}
	for _, item := range r.Checklist.Items() {
		mark := "[ ]"
		if item.Done {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, item.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}
