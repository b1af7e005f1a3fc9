package model

// Checklist is the seven-property completion contract. The run may finish
// only when all seven properties hold simultaneously.
type Checklist struct {
	HasExecutableArtifact bool `json:"has_executable_artifact"`
	AllArtifactsPlaced    bool `json:"all_artifacts_placed"`
	SupportsAutoExpand    bool `json:"supports_auto_expand"`
	AvoidsSelfReference   bool `json:"avoids_self_reference"`
	HasAcceptanceTests    bool `json:"has_acceptance_tests"`
	HasFallbackPlan       bool `json:"has_fallback_plan"`
	HasDeployNotes        bool `json:"has_deploy_notes"`
}

// Complete reports whether all seven properties hold.
func (c Checklist) Complete() bool {
	return c.HasExecutableArtifact &&
		c.AllArtifactsPlaced &&
		c.SupportsAutoExpand &&
		c.AvoidsSelfReference &&
		c.HasAcceptanceTests &&
		c.HasFallbackPlan &&
		c.HasDeployNotes
}

// Items returns every property with its label in a stable order.
func (c Checklist) Items() []ChecklistItem {
	return []ChecklistItem{
		{"executable artifact present", c.HasExecutableArtifact},
		{"every artifact has placement info", c.AllArtifactsPlaced},
		{"artifacts support automatic range growth", c.SupportsAutoExpand},
		{"no artifact references its own target", c.AvoidsSelfReference},
		{"at least 3 acceptance tests", c.HasAcceptanceTests},
		{"at least 1 fallback plan", c.HasFallbackPlan},
		{"deploy notes present", c.HasDeployNotes},
	}
}

// Missing returns the labels of every currently-false property.
func (c Checklist) Missing() []string {
	var out []string
	for _, item := range c.Items() {
		if !item.Done {
			out = append(out, item.Label)
		}
	}
	return out
}

// ChecklistItem pairs a property label with its state.
type ChecklistItem struct {
	Label string
	Done  bool
}
