// Package formula runs the fixed rule set over one artifact and returns
// pass/fail/warn verdicts. It is a structural gate, not an interpreter: it
// never evaluates a formula, only inspects its text.
package formula

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sheetgate/sheetgate/internal/model"
)

// Stable rule identifiers. New rules may be added freely as long as each
// carries a unique id and one of the three statuses.
const (
	RuleIDSyntax        = "R1_FORMULA_SYNTAX"
	RuleIDSelfReference = "R2_SELF_REFERENCE"
	RuleIDArrayExpand   = "GS3_ARRAY_EXPANSION"
	RuleIDStructuredRef = "XL3_STRUCTURED_REF"
	RuleIDOpenRange     = "GS4_OPEN_RANGE"
)

var (
	// A1-style cell address with a required row number. The leading class
	// keeps function names like LOG10 from matching as G10 would.
	cellRefRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9_$])\$?([A-Za-z]{1,3})\$?[0-9]+`)
	// Bounded range such as A2:A100.
	boundedRangeRe = regexp.MustCompile(`\$?[A-Za-z]{1,3}\$?[0-9]+\s*:\s*\$?[A-Za-z]{1,3}\$?[0-9]+`)
	arrayFormulaRe = regexp.MustCompile(`(?i)\bARRAYFORMULA\s*\(`)
	// Structured table reference (Table[Column]) or whole-column A:A.
	structuredRefRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\[[^\]]*\]`)
	wholeColumnRe   = regexp.MustCompile(`(?i)\b\$?[A-Z]{1,3}:\$?[A-Z]{1,3}\b`)
	columnLettersRe = regexp.MustCompile(`^\$?([A-Za-z]{1,3})`)
)

// Validator applies the formula rule set to artifacts.
type Validator struct{}

// NewValidator constructs a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns the ordered rule verdicts for one artifact. Rules that do
// not apply to the artifact's type or platform emit no validation.
func (v *Validator) Validate(a model.Artifact) []model.Validation {
	if !a.Executable() {
		return nil
	}
	content := strings.TrimSpace(a.Content)

	var out []model.Validation
	out = append(out, checkSyntax(content))
	if ref := checkSelfReference(a, content); ref != nil {
		out = append(out, *ref)
	}
	if exp := checkAutoExpand(a, content); exp != nil {
		out = append(out, *exp)
	}
	if open := checkOpenRange(a, content); open != nil {
		out = append(out, *open)
	}
	return out
}

func checkSyntax(content string) model.Validation {
	val := model.Validation{
		RuleID:   RuleIDSyntax,
		RuleName: "formula syntax",
		Category: model.RuleSyntax,
		Status:   model.StatusPass,
	}
	if !strings.HasPrefix(content, "=") {
		val.Status = model.StatusWarn
		val.Reason = "formula content does not start with '='"
		return val
	}
	depth := 0
	for _, r := range content {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			break
		}
	}
	if depth != 0 {
		val.Status = model.StatusWarn
		val.Reason = "unbalanced parentheses"
	}
	return val
}

// checkSelfReference fails a formula whose text references a cell address in
// its own declared target column. A self-referencing cell either errors or
// silently corrupts recalculation order, so this is the one rule that must
// never pass a bad formula.
func checkSelfReference(a model.Artifact, content string) *model.Validation {
	column := targetColumn(a)
	if column == "" {
		return nil
	}
	val := model.Validation{
		RuleID:   RuleIDSelfReference,
		RuleName: "self reference",
		Category: model.RuleSelfReference,
		Status:   model.StatusPass,
		Details:  map[string]any{"target_column": column},
	}
	for _, m := range cellRefRe.FindAllStringSubmatch(content, -1) {
		if strings.EqualFold(m[1], column) {
			val.Status = model.StatusFail
			val.Reason = fmt.Sprintf("formula references column %s, which is its own target column", column)
			return &val
		}
	}
	return &val
}

// checkAutoExpand passes a formula that uses the platform's open-ended
// expansion construct. On platforms without such a construct, or when the
// construct is absent, the rule does not apply and emits nothing.
func checkAutoExpand(a model.Artifact, content string) *model.Validation {
	switch a.Platform {
	case model.PlatformGoogleSheets:
		if arrayFormulaRe.MatchString(content) {
			return &model.Validation{
				RuleID:   RuleIDArrayExpand,
				RuleName: "array expansion",
				Category: model.RuleAutoExpand,
				Status:   model.StatusPass,
				Reason:   "ARRAYFORMULA applies to the whole column as it grows",
			}
		}
	case model.PlatformExcel:
		if structuredRefRe.MatchString(content) || wholeColumnRe.MatchString(content) {
			return &model.Validation{
				RuleID:   RuleIDStructuredRef,
				RuleName: "structured reference",
				Category: model.RuleAutoExpand,
				Status:   model.StatusPass,
				Reason:   "structured or whole-column reference grows with the data",
			}
		}
	}
	return nil
}

// checkOpenRange warns (never fails) about hard-coded bounded ranges on a
// platform where open-ended ranges are idiomatic: the formula silently stops
// covering rows once data grows past the bound.
func checkOpenRange(a model.Artifact, content string) *model.Validation {
	if a.Platform != model.PlatformGoogleSheets {
		return nil
	}
	bounded := boundedRangeRe.FindString(content)
	if bounded == "" {
		return nil
	}
	open := openEquivalent(bounded)
	return &model.Validation{
		RuleID:   RuleIDOpenRange,
		RuleName: "open range",
		Category: model.RuleOpenRange,
		Status:   model.StatusWarn,
		Reason:   fmt.Sprintf("hard-coded range %s stops working once data grows past the bound; prefer %s", bounded, open),
		Details:  map[string]any{"range": bounded, "suggested": open},
	}
}

// targetColumn extracts the declared target column letters from the
// artifact, falling back to the target cell's column.
func targetColumn(a model.Artifact) string {
	candidate := a.TargetColumn
	if candidate == "" {
		candidate = a.TargetCell
	}
	if candidate == "" {
		return ""
	}
	// Drop a sheet prefix and a C:C style repetition.
	if _, after, ok := strings.Cut(candidate, "!"); ok {
		candidate = after
	}
	if before, _, ok := strings.Cut(candidate, ":"); ok {
		candidate = before
	}
	m := columnLettersRe.FindStringSubmatch(strings.TrimSpace(candidate))
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// openEquivalent renders the open-ended form of a bounded range, e.g.
// A2:A100 becomes A2:A.
func openEquivalent(bounded string) string {
	start, end, ok := strings.Cut(bounded, ":")
	if !ok {
		return bounded
	}
	endCol := columnLettersRe.FindStringSubmatch(strings.TrimSpace(end))
	if endCol == nil {
		return bounded
	}
	return strings.TrimSpace(start) + ":" + strings.ToUpper(endCol[1])
}
