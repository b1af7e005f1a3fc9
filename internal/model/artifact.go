package model

import (
	"strings"
	"time"
)

// ArtifactType tags the kind of deliverable an artifact carries.
type ArtifactType string

const (
	ArtifactFormula    ArtifactType = "FORMULA"
	ArtifactSteps      ArtifactType = "STEPS"
	ArtifactTemplate   ArtifactType = "TEMPLATE"
	ArtifactSchemaPlan ArtifactType = "SCHEMA_PLAN"
)

// ParseArtifactType maps a type name to its ArtifactType, case-insensitively.
// Unrecognized names yield an untyped artifact.
func ParseArtifactType(s string) ArtifactType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FORMULA":
		return ArtifactFormula
	case "STEPS":
		return ArtifactSteps
	case "TEMPLATE":
		return ArtifactTemplate
	case "SCHEMA_PLAN":
		return ArtifactSchemaPlan
	}
	return ""
}

// Platform identifies the spreadsheet dialect an artifact targets.
type Platform string

const (
	PlatformExcel        Platform = "excel"
	PlatformGoogleSheets Platform = "google_sheets"
)

// ParsePlatform maps a platform name to its Platform value. Unknown names
// fall back to the provided default.
func ParsePlatform(s string, fallback Platform) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "excel", "xlsx", "ms_excel":
		return PlatformExcel
	case "google_sheets", "gsheets", "google":
		return PlatformGoogleSheets
	}
	return fallback
}

// Artifact is one concrete deliverable proposed by the model: a formula,
// step list, template, or schema plan with a target location.
type Artifact struct {
	Type         ArtifactType `json:"type,omitempty"`
	Platform     Platform     `json:"platform"`
	TargetSheet  string       `json:"target_sheet,omitempty"`
	TargetCell   string       `json:"target_cell,omitempty"`
	TargetRange  string       `json:"target_range,omitempty"`
	TargetColumn string       `json:"target_column,omitempty"`
	Content      string       `json:"content"`
	CreatedAt    time.Time    `json:"created_at"`
}

// HasPlacement reports whether at least one placement descriptor is set.
func (a Artifact) HasPlacement() bool {
	return a.TargetSheet != "" || a.TargetCell != "" || a.TargetRange != "" || a.TargetColumn != ""
}

// Executable reports whether the artifact carries something the spreadsheet
// can evaluate: a declared formula, or content that looks like one.
func (a Artifact) Executable() bool {
	if a.Type == ArtifactFormula {
		return strings.TrimSpace(a.Content) != ""
	}
	return strings.HasPrefix(strings.TrimSpace(a.Content), "=")
}
