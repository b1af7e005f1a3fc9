package model

import "strings"

// Stage is one of the six ordered states a run passes through.
type Stage string

const (
	StageInit     Stage = "INIT"
	StageAnalyzed Stage = "ANALYZED"
	StageDesigned Stage = "DESIGNED"
	StageExecuted Stage = "EXECUTED"
	StageVerified Stage = "VERIFIED"
	StageDeployed Stage = "DEPLOYED"
)

// Stages lists all stages in progression order.
func Stages() []Stage {
	return []Stage{StageInit, StageAnalyzed, StageDesigned, StageExecuted, StageVerified, StageDeployed}
}

// ParseStage maps a stage name to its Stage value, case-insensitively.
func ParseStage(s string) (Stage, bool) {
	candidate := Stage(strings.ToUpper(strings.TrimSpace(s)))
	for _, stage := range Stages() {
		if stage == candidate {
			return stage, true
		}
	}
	return "", false
}

// Terminal reports whether the stage has no outgoing transitions.
func (s Stage) Terminal() bool {
	return s == StageDeployed
}
