package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetgate/sheetgate/internal/config"
	"github.com/sheetgate/sheetgate/internal/intercept"
	"github.com/sheetgate/sheetgate/internal/model"
)

const acceptableOutput = `Work is done, package follows.

[STATE]
current_state=EXECUTED
next_state=VERIFIED

[ARTIFACTS]
- type=FORMULA platform=google_sheets target_sheet=Data target_column=D content==ARRAYFORMULA(B2:B*C2:C)

[ACCEPTANCE_TESTS]
1) Column D holds the product of B and C
2) New rows extend the calculation
3) Header row stays untouched

[FALLBACK]
- if the source columns are empty then leave D blank

[DEPLOY_NOTES]
- protect_ranges: Data!A1:D1
- permissions: editors only

[NEXT_ACTION]
- system_will_validate: formula placement
- user_needs_to_provide: nothing
- if_fail_agent_will: redesign and resubmit
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(config.Default())
}

func newTestRun(t *testing.T, e *Engine) *model.Run {
	t.Helper()
	run, err := e.NewRun("u-1", "task-1")
	require.NoError(t, err)
	return run
}

func TestTurnAcceptsCompletePackage(t *testing.T) {
	e := newTestEngine(t)
	run := newTestRun(t, e)
	e.HandleUserMessage(run, "multiply B and C into D")
	require.Equal(t, 1, run.Iteration)

	res := e.HandleModelOutput(run, acceptableOutput)

	assert.True(t, res.AllowFinish)
	assert.Empty(t, res.SystemMessage)
	assert.Contains(t, res.UserMessage, "deployed")
	assert.Equal(t, model.StageDeployed, res.Stage)
	assert.Equal(t, model.StageDeployed, run.Stage)
	assert.True(t, res.Checklist.Complete())
	require.Len(t, run.Artifacts, 1)
	assert.Equal(t, "=ARRAYFORMULA(B2:B*C2:C)", run.Artifacts[0].Content)
}

func TestTurnReissuesTemplateOnFormatDefect(t *testing.T) {
	e := newTestEngine(t)
	run := newTestRun(t, e)

	res := e.HandleModelOutput(run, "I finished the task, everything works.")

	assert.False(t, res.AllowFinish)
	assert.Empty(t, res.UserMessage)
	assert.Contains(t, res.SystemMessage, intercept.SubmissionTemplate)
	assert.Equal(t, model.StageInit, run.Stage)
	require.NotEmpty(t, run.History)
	last := run.History[len(run.History)-1]
	assert.Equal(t, model.RoleSystem, last.Role)
}

func TestTurnForcesContinueOnUnplacedArtifact(t *testing.T) {
	e := newTestEngine(t)
	run := newTestRun(t, e)
	output := strings.Replace(acceptableOutput,
		"- type=FORMULA platform=google_sheets target_sheet=Data target_column=D content==ARRAYFORMULA(B2:B*C2:C)",
		"- type=FORMULA platform=google_sheets content==ARRAYFORMULA(B2:B*C2:C)", 1)

	res := e.HandleModelOutput(run, output)

	assert.False(t, res.AllowFinish)
	assert.Contains(t, res.SystemMessage, "You may not declare this task finished yet.")
	assert.Contains(t, res.SystemMessage, "placement")
	assert.False(t, res.Checklist.AllArtifactsPlaced)
	assert.Equal(t, model.StageExecuted, run.Stage)
}

func TestTurnRegressesWhenNothingExecutableRemains(t *testing.T) {
	e := newTestEngine(t)
	run := newTestRun(t, e)
	run.Stage = model.StageVerified
	output := strings.Replace(acceptableOutput,
		"- type=FORMULA platform=google_sheets target_sheet=Data target_column=D content==ARRAYFORMULA(B2:B*C2:C)",
		"- type=STEPS platform=google_sheets target_sheet=Data content=fill column D by hand", 1)

	res := e.HandleModelOutput(run, output)

	assert.False(t, res.AllowFinish)
	assert.False(t, res.Checklist.HasExecutableArtifact)
	assert.Equal(t, model.StageDesigned, run.Stage)
}

func TestTurnStopsOnSelfReference(t *testing.T) {
	e := newTestEngine(t)
	run := newTestRun(t, e)
	output := strings.Replace(acceptableOutput,
		"content==ARRAYFORMULA(B2:B*C2:C)",
		"content==ARRAYFORMULA(D2:D*C2:C)", 1)

	res := e.HandleModelOutput(run, output)

	assert.False(t, res.AllowFinish)
	assert.Contains(t, res.SystemMessage, "its own target column")
	assert.NotContains(t, res.SystemMessage, intercept.SubmissionTemplate)
	assert.False(t, res.Checklist.AvoidsSelfReference)
}

func TestTurnHandsOverWhenBudgetExhausted(t *testing.T) {
	e := newTestEngine(t)
	run := newTestRun(t, e)
	run.Iteration = run.MaxIterations

	res := e.HandleModelOutput(run, acceptableOutput)

	assert.False(t, res.AllowFinish)
	assert.Empty(t, res.SystemMessage)
	assert.Contains(t, res.UserMessage, "could not be completed")
	assert.Equal(t, model.StageInit, run.Stage)
	assert.Empty(t, run.Artifacts, "budget handover must run before parsing")
}

func TestRunSummaryRendersChecklist(t *testing.T) {
	e := newTestEngine(t)
	run := newTestRun(t, e)
	e.HandleModelOutput(run, acceptableOutput)

	summary := e.RunSummary(run)
	assert.Contains(t, summary, "stage: DEPLOYED")
	assert.Contains(t, summary, "[x] executable artifact present")
	assert.NotContains(t, summary, "[ ]")
}
