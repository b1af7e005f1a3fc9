package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetgate/sheetgate/internal/model"
)

const fullSubmission = `Here is my final package.

[STATE]
current_state=EXECUTED
next_state=VERIFIED

[ARTIFACTS]
- type=FORMULA platform=google_sheets target_sheet=Data target_column=D content==ARRAYFORMULA(B2:B*C2:C)

[ACCEPTANCE_TESTS]
1) Column D shows the product of B and C for every data row
2) Adding a new row extends the calculation automatically
3) Header row stays untouched

[FALLBACK]
- if the source columns are empty then leave D blank

[DEPLOY_NOTES]
- protect_ranges: Data!A1:D1, Data!D2:D
- naming_conventions: totals_*
- permissions: editors only

[NEXT_ACTION]
- system_will_validate: formula placement and range growth
- user_needs_to_provide: confirmation of the header row
- if_fail_agent_will: redesign the formula and resubmit
`

func TestParseFullSubmission(t *testing.T) {
	p := New(model.PlatformGoogleSheets)
	res := p.Parse(fullSubmission)

	require.True(t, res.Success)
	assert.Empty(t, res.MissingBlocks)
	sub := res.Submission
	require.NotNil(t, sub)

	assert.Equal(t, model.StageVerified, sub.NextStage)

	require.Len(t, sub.Artifacts, 1)
	a := sub.Artifacts[0]
	assert.Equal(t, model.ArtifactFormula, a.Type)
	assert.Equal(t, model.PlatformGoogleSheets, a.Platform)
	assert.Equal(t, "Data", a.TargetSheet)
	assert.Equal(t, "D", a.TargetColumn)
	assert.Equal(t, "=ARRAYFORMULA(B2:B*C2:C)", a.Content)

	require.Len(t, sub.AcceptanceTests, 3)
	assert.Equal(t, "AT1", sub.AcceptanceTests[0].ID)
	assert.Equal(t, "pass", sub.AcceptanceTests[0].Expected)

	require.Len(t, sub.Fallbacks, 1)
	assert.Equal(t, "the source columns are empty", sub.Fallbacks[0].Condition)
	assert.Equal(t, "leave D blank", sub.Fallbacks[0].Action)

	require.NotNil(t, sub.DeployNotes)
	assert.Equal(t, []string{"Data!A1:D1", "Data!D2:D"}, sub.DeployNotes.ProtectRanges)
	assert.Equal(t, []string{"totals_*"}, sub.DeployNotes.NamingConventions)
	assert.Equal(t, []string{"editors only"}, sub.DeployNotes.Permissions)

	require.NotNil(t, sub.NextAction)
	assert.Equal(t, "formula placement and range growth", sub.NextAction.SystemWillValidate)
}

func TestParseReportsMissingMarkers(t *testing.T) {
	p := New(model.PlatformGoogleSheets)

	withoutFallback := strings.Replace(fullSubmission, "[FALLBACK]", "", 1)
	res := p.Parse(withoutFallback)
	require.False(t, res.Success)
	assert.Equal(t, []string{MarkerFallback}, res.MissingBlocks)
	assert.Nil(t, res.Submission)

	res = p.Parse("no markers at all")
	require.False(t, res.Success)
	assert.ElementsMatch(t, RequiredMarkers(), res.MissingBlocks)
}

func TestParseNextActionIsOptional(t *testing.T) {
	p := New(model.PlatformGoogleSheets)
	idx := strings.Index(fullSubmission, "[NEXT_ACTION]")
	require.Positive(t, idx)

	res := p.Parse(fullSubmission[:idx])
	require.True(t, res.Success)
	assert.Nil(t, res.Submission.NextAction)
}

func TestParseStateDefaultsToExecuted(t *testing.T) {
	p := New(model.PlatformGoogleSheets)

	text := strings.Replace(fullSubmission, "current_state=EXECUTED", "", 1)
	text = strings.Replace(text, "next_state=VERIFIED", "next_state=LAUNCHED", 1)
	res := p.Parse(text)
	require.True(t, res.Success)
	assert.Equal(t, model.StageExecuted, res.Submission.NextStage)
}

func TestParseMarkersAreCaseInsensitiveAndUnordered(t *testing.T) {
	p := New(model.PlatformGoogleSheets)
	text := `[deploy_notes]
- permissions: owner
[fallback]
- if it breaks then roll back
[acceptance_tests]
1) one
2) two
3) three
[artifacts]
- type=FORMULA target_range=A1:B1 content==SUM(A:A)
[state]
next_state=executed
`
	res := p.Parse(text)
	require.True(t, res.Success)
	assert.Equal(t, model.StageExecuted, res.Submission.NextStage)
	assert.Len(t, res.Submission.AcceptanceTests, 3)
}

func TestParseArtifactsFallsBackToFormulaScan(t *testing.T) {
	p := New(model.PlatformGoogleSheets)
	text := strings.Replace(fullSubmission,
		"- type=FORMULA platform=google_sheets target_sheet=Data target_column=D content==ARRAYFORMULA(B2:B*C2:C)",
		"I think the right formula is\n=SUM(B2:B100)\nplaced somewhere in column D", 1)

	res := p.Parse(text)
	require.True(t, res.Success)
	require.Len(t, res.Submission.Artifacts, 1)
	a := res.Submission.Artifacts[0]
	assert.Equal(t, model.ArtifactType(""), a.Type)
	assert.Equal(t, model.PlatformGoogleSheets, a.Platform)
	assert.Equal(t, "=SUM(B2:B100)", a.Content)
	assert.False(t, a.HasPlacement())
}

func TestParseFallbackPatterns(t *testing.T) {
	p := New(model.PlatformGoogleSheets)
	text := strings.Replace(fullSubmission,
		"- if the source columns are empty then leave D blank",
		"- if the import fails then restore the backup\n- formula error -> show N/A\n- quota exceeded: pause the sync\njust some prose that matches nothing", 1)

	res := p.Parse(text)
	require.True(t, res.Success)
	plans := res.Submission.Fallbacks
	require.Len(t, plans, 3)
	assert.Equal(t, model.FallbackPlan{Condition: "the import fails", Action: "restore the backup"}, plans[0])
	assert.Equal(t, model.FallbackPlan{Condition: "formula error", Action: "show N/A"}, plans[1])
	assert.Equal(t, model.FallbackPlan{Condition: "quota exceeded", Action: "pause the sync"}, plans[2])
}
