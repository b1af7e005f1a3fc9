package model

// AcceptanceTest describes one verifiable check the model commits to.
type AcceptanceTest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Expected    string `json:"expected"`
}

// FallbackPlan is one condition/action pair for when a deliverable breaks.
type FallbackPlan struct {
	Condition string `json:"condition"`
	Action    string `json:"action"`
}

// DeployNotes capture operational notes attached to a submission.
type DeployNotes struct {
	ProtectRanges     []string `json:"protect_ranges,omitempty"`
	NamingConventions []string `json:"naming_conventions,omitempty"`
	Permissions       []string `json:"permissions,omitempty"`
}

// Empty reports whether no note of any kind is present.
func (d DeployNotes) Empty() bool {
	return len(d.ProtectRanges) == 0 && len(d.NamingConventions) == 0 && len(d.Permissions) == 0
}

// NextAction describes what happens after this turn: what the system will
// validate, what the user must supply, and what the model does on failure.
type NextAction struct {
	SystemWillValidate string `json:"system_will_validate,omitempty"`
	UserNeedsToProvide string `json:"user_needs_to_provide,omitempty"`
	IfFailAgentWill    string `json:"if_fail_agent_will,omitempty"`
}

// Submission is the parsed, structured form of one model turn's text. It is
// transient: built fresh from each turn and discarded once processed.
type Submission struct {
	NextStage       Stage            `json:"next_stage"`
	Artifacts       []Artifact       `json:"artifacts"`
	AcceptanceTests []AcceptanceTest `json:"acceptance_tests"`
	Fallbacks       []FallbackPlan   `json:"fallbacks"`
	DeployNotes     *DeployNotes     `json:"deploy_notes,omitempty"`
	NextAction      *NextAction      `json:"next_action,omitempty"`
	Raw             string           `json:"-"`
}

// HasExecutableArtifact reports whether any artifact is executable.
func (s *Submission) HasExecutableArtifact() bool {
	for _, a := range s.Artifacts {
		if a.Executable() {
			return true
		}
	}
	return false
}

// HasDeployNotes reports whether non-empty deploy notes were submitted.
func (s *Submission) HasDeployNotes() bool {
	return s.DeployNotes != nil && !s.DeployNotes.Empty()
}
