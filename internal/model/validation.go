package model

// RuleStatus is the verdict of one validation rule.
type RuleStatus string

const (
	StatusPass RuleStatus = "PASS"
	StatusFail RuleStatus = "FAIL"
	StatusWarn RuleStatus = "WARN"
)

// RuleCategory is the closed set of rule kinds. Callers dispatch on the
// category; the free-text rule id exists for stable display only.
type RuleCategory string

const (
	RuleSyntax        RuleCategory = "syntax"
	RuleSelfReference RuleCategory = "self_reference"
	RuleAutoExpand    RuleCategory = "auto_expand"
	RuleOpenRange     RuleCategory = "open_range"
	RuleStructural    RuleCategory = "structural"
)

// Validation is one rule's verdict against one artifact or structural
// property. A FAIL blocks completion; a WARN is surfaced but never blocks.
type Validation struct {
	RuleID   string         `json:"rule_id"`
	RuleName string         `json:"rule_name"`
	Category RuleCategory   `json:"category"`
	Status   RuleStatus     `json:"status"`
	Reason   string         `json:"reason,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// Blocking reports whether this validation blocks completion.
func (v Validation) Blocking() bool {
	return v.Status == StatusFail
}
