package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullChecklist() Checklist {
	return Checklist{
		HasExecutableArtifact: true,
		AllArtifactsPlaced:    true,
		SupportsAutoExpand:    true,
		AvoidsSelfReference:   true,
		HasAcceptanceTests:    true,
		HasFallbackPlan:       true,
		HasDeployNotes:        true,
	}
}

func TestChecklistCompleteIsStrictConjunction(t *testing.T) {
	require.True(t, fullChecklist().Complete())

	flip := []func(*Checklist){
		func(c *Checklist) { c.HasExecutableArtifact = false },
		func(c *Checklist) { c.AllArtifactsPlaced = false },
		func(c *Checklist) { c.SupportsAutoExpand = false },
		func(c *Checklist) { c.AvoidsSelfReference = false },
		func(c *Checklist) { c.HasAcceptanceTests = false },
		func(c *Checklist) { c.HasFallbackPlan = false },
		func(c *Checklist) { c.HasDeployNotes = false },
	}
	for i, f := range flip {
		c := fullChecklist()
		f(&c)
		assert.Falsef(t, c.Complete(), "flipping property %d must break completion", i)
		assert.Len(t, c.Missing(), 1)
	}
}

func TestChecklistItemsCoverAllSevenProperties(t *testing.T) {
	items := fullChecklist().Items()
	require.Len(t, items, 7)
	for _, item := range items {
		assert.True(t, item.Done)
		assert.NotEmpty(t, item.Label)
	}
	assert.Empty(t, fullChecklist().Missing())
	assert.Len(t, Checklist{}.Missing(), 7)
}

func TestStageParsing(t *testing.T) {
	stage, ok := ParseStage("deployed")
	require.True(t, ok)
	assert.Equal(t, StageDeployed, stage)

	stage, ok = ParseStage(" Executed ")
	require.True(t, ok)
	assert.Equal(t, StageExecuted, stage)

	_, ok = ParseStage("launched")
	assert.False(t, ok)
}

func TestArtifactExecutableAndPlacement(t *testing.T) {
	formula := Artifact{Type: ArtifactFormula, Content: "=SUM(A:A)", TargetColumn: "B"}
	assert.True(t, formula.Executable())
	assert.True(t, formula.HasPlacement())

	steps := Artifact{Type: ArtifactSteps, Content: "1. open the sheet"}
	assert.False(t, steps.Executable())
	assert.False(t, steps.HasPlacement())

	untyped := Artifact{Content: "=A1+B1"}
	assert.True(t, untyped.Executable())
}
