package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetgate/sheetgate/internal/formula"
	"github.com/sheetgate/sheetgate/internal/model"
)

func completeSubmission() *model.Submission {
	return &model.Submission{
		NextStage: model.StageVerified,
		Artifacts: []model.Artifact{{
			Type:         model.ArtifactFormula,
			Platform:     model.PlatformGoogleSheets,
			TargetSheet:  "Data",
			TargetColumn: "D",
			Content:      "=ARRAYFORMULA(B2:B*C2:C)",
		}},
		AcceptanceTests: []model.AcceptanceTest{
			{ID: "AT1", Description: "products appear in D", Expected: "pass"},
			{ID: "AT2", Description: "new rows are covered", Expected: "pass"},
			{ID: "AT3", Description: "header row untouched", Expected: "pass"},
		},
		Fallbacks:   []model.FallbackPlan{{Condition: "sources empty", Action: "leave D blank"}},
		DeployNotes: &model.DeployNotes{ProtectRanges: []string{"Data!A1:D1"}},
	}
}

func TestValidateCompleteSubmissionPasses(t *testing.T) {
	e := NewEngine(formula.NewValidator())
	report := e.Validate(completeSubmission())

	assert.True(t, report.AllPassed)
	assert.Empty(t, report.CriticalFails)
	assert.True(t, report.Checklist.Complete())
	assert.Contains(t, report.Summary, "[x]")
	assert.NotContains(t, report.Summary, "FAIL")
}

func TestValidateEmptySubmissionFailsStructurally(t *testing.T) {
	e := NewEngine(formula.NewValidator())
	report := e.Validate(&model.Submission{})

	require.False(t, report.AllPassed)
	require.Len(t, report.CriticalFails, 1)
	val := report.CriticalFails[0]
	assert.Equal(t, RuleIDStructural, val.RuleID)
	assert.Equal(t, model.RuleStructural, val.Category)
	assert.Contains(t, val.Reason, "artifacts")
	assert.Contains(t, val.Reason, "fallback")
	assert.Contains(t, val.Reason, "deploy notes")
	assert.False(t, report.Checklist.Complete())
}

func TestValidateSelfReferenceIsCritical(t *testing.T) {
	e := NewEngine(formula.NewValidator())
	sub := completeSubmission()
	sub.Artifacts[0].Content = "=D1+B1"

	report := e.Validate(sub)
	assert.False(t, report.AllPassed)
	assert.True(t, report.HasFailCategory(model.RuleSelfReference))
	assert.False(t, report.Checklist.AvoidsSelfReference)
	assert.Contains(t, report.Summary, formula.RuleIDSelfReference)
}

func TestValidateWarningsDoNotBlock(t *testing.T) {
	e := NewEngine(formula.NewValidator())
	sub := completeSubmission()
	sub.Artifacts[0].Content = "=SUM(A2:A100)"

	report := e.Validate(sub)
	assert.True(t, report.AllPassed)
	require.NotEmpty(t, report.Warnings)
	assert.False(t, report.Checklist.SupportsAutoExpand)
}

func TestDeriveChecklistStructuralFlags(t *testing.T) {
	sub := completeSubmission()
	checklist := DeriveChecklist(sub, nil)
	assert.True(t, checklist.HasExecutableArtifact)
	assert.True(t, checklist.AllArtifactsPlaced)
	assert.True(t, checklist.HasAcceptanceTests)
	assert.True(t, checklist.HasFallbackPlan)
	assert.True(t, checklist.HasDeployNotes)

	sub.AcceptanceTests = sub.AcceptanceTests[:2]
	sub.Artifacts = append(sub.Artifacts, model.Artifact{Type: model.ArtifactFormula, Content: "=A1"})
	checklist = DeriveChecklist(sub, nil)
	assert.False(t, checklist.HasAcceptanceTests)
	assert.False(t, checklist.AllArtifactsPlaced)
}

func TestDeriveChecklistReadsRuleResults(t *testing.T) {
	sub := completeSubmission()

	checklist := DeriveChecklist(sub, []model.Validation{
		{RuleID: formula.RuleIDSelfReference, Category: model.RuleSelfReference, Status: model.StatusFail},
		{RuleID: formula.RuleIDOpenRange, Category: model.RuleOpenRange, Status: model.StatusWarn},
	})
	assert.False(t, checklist.AvoidsSelfReference)
	assert.False(t, checklist.SupportsAutoExpand)

	checklist = DeriveChecklist(sub, []model.Validation{
		{RuleID: formula.RuleIDOpenRange, Category: model.RuleOpenRange, Status: model.StatusWarn},
		{RuleID: formula.RuleIDArrayExpand, Category: model.RuleAutoExpand, Status: model.StatusPass},
	})
	assert.True(t, checklist.AvoidsSelfReference)
	assert.True(t, checklist.SupportsAutoExpand, "a recognized expansion construct outweighs a bound warning")
}
