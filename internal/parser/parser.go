// Package parser turns raw model output into a structured submission.
//
// The producer is a language model, not a deterministic emitter, so parsing
// is intentionally permissive: malformed content degrades instead of
// erroring, and strictness lives in the interceptor and gate layers. Only
// absent required section markers fail a parse.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sheetgate/sheetgate/internal/model"
)

// Section markers recognized in model output, matched case-insensitively.
const (
	MarkerState           = "[STATE]"
	MarkerArtifacts       = "[ARTIFACTS]"
	MarkerAcceptanceTests = "[ACCEPTANCE_TESTS]"
	MarkerFallback        = "[FALLBACK]"
	MarkerDeployNotes     = "[DEPLOY_NOTES]"
	MarkerNextAction      = "[NEXT_ACTION]"
)

// RequiredMarkers are the sections whose absence fails the parse.
// MarkerNextAction is optional here; its absence is a format defect handled
// by the interceptor layer, not a parse failure.
func RequiredMarkers() []string {
	return []string{MarkerState, MarkerArtifacts, MarkerAcceptanceTests, MarkerFallback, MarkerDeployNotes}
}

// Result reports the outcome of one parse.
type Result struct {
	Success       bool
	MissingBlocks []string
	Submission    *model.Submission
}

// Parser decomposes protocol sections out of free text.
type Parser struct {
	defaultPlatform model.Platform
}

// New constructs a parser. Artifacts without a recognizable platform are
// assigned defaultPlatform.
func New(defaultPlatform model.Platform) *Parser {
	return &Parser{defaultPlatform: defaultPlatform}
}

var (
	markerRe = regexp.MustCompile(`(?i)\[(STATE|ARTIFACTS|ACCEPTANCE_TESTS|FALLBACK|DEPLOY_NOTES|NEXT_ACTION)\]`)
	stateRe  = regexp.MustCompile(`(?im)^\s*(current_state|next_state)\s*[:=]\s*([A-Za-z_]+)`)
	attrRe   = regexp.MustCompile(`(\w+)\s*=\s*(?:"([^"]*)"|(\S+))`)
	// Formula fallback: a line whose payload begins with '=' after an
	// optional bullet marker.
	looseFormulaRe = regexp.MustCompile(`(?m)^[^\S\n]*[-*•]?[^\S\n]*(=\S[^\n]*)`)
	testLineRe     = regexp.MustCompile(`^\s*(?:\d+[.)\]:]|[-*•])\s*(.+)$`)
	ifThenRe       = regexp.MustCompile(`(?i)^if\s+(.+?)\s*,?\s+then\s+(.+)$`)
	noteKeyRe      = regexp.MustCompile(`(?i)^\s*[-*•]?\s*(protect_ranges|naming_conventions|permissions)\s*[:=]\s*(.+)$`)
	nextActionRe   = regexp.MustCompile(`(?i)^\s*[-*•]?\s*(system_will_validate|user_needs_to_provide|if_fail_agent_will)\s*[:=]\s*(.+)$`)
)

// Parse scans raw text for the six protocol sections and decomposes each.
// It never returns an error: a parse either succeeds with a submission or
// reports exactly which required markers were absent.
func (p *Parser) Parse(raw string) Result {
	sections := splitSections(raw)

	var missing []string
	for _, marker := range RequiredMarkers() {
		if _, ok := sections[marker]; !ok {
			missing = append(missing, marker)
		}
	}
	if len(missing) > 0 {
		return Result{Success: false, MissingBlocks: missing}
	}

	sub := &model.Submission{
		NextStage:       p.parseState(sections[MarkerState]),
		Artifacts:       p.parseArtifacts(sections[MarkerArtifacts]),
		AcceptanceTests: parseAcceptanceTests(sections[MarkerAcceptanceTests]),
		Fallbacks:       parseFallbacks(sections[MarkerFallback]),
		DeployNotes:     parseDeployNotes(sections[MarkerDeployNotes]),
		Raw:             raw,
	}
	if body, ok := sections[MarkerNextAction]; ok {
		sub.NextAction = parseNextAction(body)
	}
	return Result{Success: true, Submission: sub}
}

// splitSections maps each marker to the text between it and the next marker
// (or end of text). Markers may appear anywhere, in any order; on duplicates
// the first occurrence wins.
func splitSections(raw string) map[string]string {
	matches := markerRe.FindAllStringSubmatchIndex(raw, -1)
	sections := make(map[string]string, len(matches))
	for i, m := range matches {
		name := "[" + strings.ToUpper(raw[m[2]:m[3]]) + "]"
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if _, seen := sections[name]; !seen {
			sections[name] = raw[m[1]:end]
		}
	}
	return sections
}

// parseState extracts the proposed next stage. A missing or unrecognized
// value defaults to Executed.
func (p *Parser) parseState(body string) model.Stage {
	var current, next string
	for _, m := range stateRe.FindAllStringSubmatch(body, -1) {
		switch strings.ToLower(m[1]) {
		case "next_state":
			next = m[2]
		case "current_state":
			current = m[2]
		}
	}
	if stage, ok := model.ParseStage(next); ok {
		return stage
	}
	if stage, ok := model.ParseStage(current); ok {
		return stage
	}
	return model.StageExecuted
}

func (p *Parser) parseArtifacts(body string) []model.Artifact {
	now := time.Now().UTC()
	var artifacts []model.Artifact
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "*") && !strings.HasPrefix(trimmed, "•") {
			continue
		}
		if a, ok := p.parseArtifactLine(strings.TrimLeft(trimmed, "-*• \t"), now); ok {
			artifacts = append(artifacts, a)
		}
	}
	if len(artifacts) > 0 {
		return artifacts
	}
	// No structured bullets matched: scan for formula-looking substrings and
	// wrap each as an untyped artifact on the default platform.
	for _, m := range looseFormulaRe.FindAllStringSubmatch(body, -1) {
		artifacts = append(artifacts, model.Artifact{
			Platform:  p.defaultPlatform,
			Content:   strings.TrimSpace(m[1]),
			CreatedAt: now,
		})
	}
	return artifacts
}

func (p *Parser) parseArtifactLine(line string, now time.Time) (model.Artifact, bool) {
	// content= consumes the rest of the line; attributes precede it.
	var content string
	if idx := indexKey(line, "content"); idx >= 0 {
		value := line[idx:]
		value = value[strings.Index(value, "=")+1:]
		content = strings.Trim(strings.TrimSpace(value), `"`)
		line = line[:idx]
	}

	a := model.Artifact{Platform: p.defaultPlatform, Content: content, CreatedAt: now}
	matched := false
	for _, m := range attrRe.FindAllStringSubmatch(line, -1) {
		value := m[2]
		if value == "" {
			value = m[3]
		}
		switch strings.ToLower(m[1]) {
		case "type":
			a.Type = model.ParseArtifactType(value)
		case "platform":
			a.Platform = model.ParsePlatform(value, p.defaultPlatform)
		case "target_sheet", "sheet":
			a.TargetSheet = value
		case "target_cell", "cell":
			a.TargetCell = value
		case "target_range", "range":
			a.TargetRange = value
		case "target_column", "column":
			a.TargetColumn = value
		default:
			continue
		}
		matched = true
	}
	if !matched && content == "" {
		return model.Artifact{}, false
	}
	return a, true
}

// indexKey finds `key=` in line outside any other word, case-insensitively.
func indexKey(line, key string) int {
	lower := strings.ToLower(line)
	from := 0
	for {
		idx := strings.Index(lower[from:], key+"=")
		if idx < 0 {
			return -1
		}
		idx += from
		if idx == 0 || !isWordByte(lower[idx-1]) {
			return idx
		}
		from = idx + len(key)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// parseAcceptanceTests turns every numbered or bulleted line into one test
// with a fixed "pass" expectation.
func parseAcceptanceTests(body string) []model.AcceptanceTest {
	var tests []model.AcceptanceTest
	for _, line := range strings.Split(body, "\n") {
		m := testLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[1])
		if desc == "" {
			continue
		}
		tests = append(tests, model.AcceptanceTest{
			ID:          fmt.Sprintf("AT%d", len(tests)+1),
			Description: desc,
			Expected:    "pass",
		})
	}
	return tests
}

// parseFallbacks extracts condition/action pairs from `if X then Y`,
// `X -> Y`, or `X: Y` lines. Non-matching lines are ignored.
func parseFallbacks(body string) []model.FallbackPlan {
	var plans []model.FallbackPlan
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimLeft(strings.TrimSpace(line), "-*• \t")
		if trimmed == "" {
			continue
		}
		if m := ifThenRe.FindStringSubmatch(trimmed); m != nil {
			plans = append(plans, model.FallbackPlan{Condition: strings.TrimSpace(m[1]), Action: strings.TrimSpace(m[2])})
			continue
		}
		for _, sep := range []string{"→", "->", ":"} {
			if cond, action, ok := strings.Cut(trimmed, sep); ok {
				cond, action = strings.TrimSpace(cond), strings.TrimSpace(action)
				if cond != "" && action != "" {
					plans = append(plans, model.FallbackPlan{Condition: cond, Action: action})
				}
				break
			}
		}
	}
	return plans
}

// parseDeployNotes collects recognized keys into comma/semicolon-split
// lists. Returns nil when nothing recognizable was found.
func parseDeployNotes(body string) *model.DeployNotes {
	notes := &model.DeployNotes{}
	for _, line := range strings.Split(body, "\n") {
		m := noteKeyRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		values := splitList(m[2])
		switch strings.ToLower(m[1]) {
		case "protect_ranges":
			notes.ProtectRanges = append(notes.ProtectRanges, values...)
		case "naming_conventions":
			notes.NamingConventions = append(notes.NamingConventions, values...)
		case "permissions":
			notes.Permissions = append(notes.Permissions, values...)
		}
	}
	if notes.Empty() {
		return nil
	}
	return notes
}

func parseNextAction(body string) *model.NextAction {
	action := &model.NextAction{}
	found := false
	for _, line := range strings.Split(body, "\n") {
		m := nextActionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "system_will_validate":
			action.SystemWillValidate = value
		case "user_needs_to_provide":
			action.UserNeedsToProvide = value
		case "if_fail_agent_will":
			action.IfFailAgentWill = value
		}
		found = true
	}
	if !found {
		return nil
	}
	return action
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
