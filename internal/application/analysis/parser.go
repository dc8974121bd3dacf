package analysis

import (
	"encoding/json"
	"regexp"
	"strings"

	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

// Output parsing. Model formatting is best-effort, so every extraction here
// degrades through layered fallbacks instead of failing: the only hard error
// out of ParseOutput is an unknown format, which validation upstream already
// prevents.

const overviewMaxLen = 200

// Fence language tags recognized as deliverable code. Blocks with other tags
// (or no tag) still count when untagged; unknown tags are treated as notes
// fences and left alone.
var codeFenceLangs = map[string]bool{
	"": true, "css": true, "scss": true,
	"javascript": true, "js": true, "typescript": true, "ts": true,
	"tsx": true, "jsx": true, "html": true, "xml": true,
	"swift": true, "kotlin": true, "dart": true,
	"json": true, "yaml": true,
}

var (
	fenceRe         = regexp.MustCompile("(?s)```([a-zA-Z0-9_+.-]*)[ \t]*\r?\n(.*?)\r?\n?```")
	overviewLabel   = regexp.MustCompile(`(?m)^\s*\*\*Overview:?\*\*:?\s*(\S.*)$`)
	overviewHeading = regexp.MustCompile(`(?m)^##\s+Overview\s*$`)
)

// ParseOutput derives a Result from raw model text. Full-document formats
// pass the raw text through as the code field; code-block formats aggregate
// fenced blocks and demote surrounding prose to notes.
func ParseOutput(raw string, format domain.OutputFormat) (*domain.Result, error) {
	if _, err := domain.ParseFormat(string(format)); err != nil {
		return nil, err
	}

	res := &domain.Result{
		Format:      format,
		Overview:    extractOverview(raw),
		RawAnalysis: raw,
	}

	if domain.MetaFor(format).FullDoc {
		res.Code = raw
		return res, nil
	}

	code, notes := extractCodeBlocks(raw)
	if code == "" {
		// No fences at all: degrade to the whole text as code.
		res.Code = raw
		return res, nil
	}
	res.Code = code
	res.Notes = notes
	return res, nil
}

// extractOverview walks the fallback chain: bolded label, then the
// "## Overview" heading's first paragraph, then the document's first
// paragraph, the latter two truncated to overviewMaxLen.
func extractOverview(raw string) string {
	if m := overviewLabel.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}

	if loc := overviewHeading.FindStringIndex(raw); loc != nil {
		rest := raw[loc[1]:]
		if p := firstParagraph(rest); p != "" {
			return truncate(p, overviewMaxLen)
		}
	}

	return truncate(firstParagraph(raw), overviewMaxLen)
}

// firstParagraph returns the first non-empty, non-heading paragraph.
func firstParagraph(s string) string {
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") || strings.HasPrefix(para, "```") {
			continue
		}
		return strings.Join(strings.Fields(para), " ")
	}
	return ""
}

// extractCodeBlocks joins recognized fenced blocks with a blank line, in
// document order, and returns the remaining prose (fences stripped,
// whitespace-trimmed) as notes.
func extractCodeBlocks(raw string) (code, notes string) {
	matches := fenceRe.FindAllStringSubmatchIndex(raw, -1)
	if matches == nil {
		return "", ""
	}

	var blocks []string
	var prose strings.Builder
	last := 0
	for _, m := range matches {
		lang := strings.ToLower(raw[m[2]:m[3]])
		body := raw[m[4]:m[5]]
		prose.WriteString(raw[last:m[0]])
		last = m[1]
		if codeFenceLangs[lang] {
			blocks = append(blocks, strings.TrimRight(body, "\n"))
		} else {
			// Unrecognized tag: keep the body visible in the notes.
			prose.WriteString(body)
		}
	}
	prose.WriteString(raw[last:])

	if len(blocks) == 0 {
		return "", ""
	}
	return strings.Join(blocks, "\n\n"), strings.TrimSpace(prose.String())
}

// ParseVerification extracts the trailing JSON verification report from an
// agentic run's raw text. Fenced blocks are scanned from the end backward
// for an object with a numeric overallScore; failing that, the last balanced
// top-level object in the text is tried. A nil return is a normal outcome,
// not an error.
func ParseVerification(raw string) *domain.VerificationReport {
	matches := fenceRe.FindAllStringSubmatch(raw, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if rep := coerceReport(matches[i][2]); rep != nil {
			return rep
		}
	}

	if obj := lastTopLevelObject(raw); obj != "" {
		return coerceReport(obj)
	}
	return nil
}

// coerceReport decodes loosely and coerces defensively: score clamped to
// [0,100], missing arrays become empty, bad severities default to minor.
func coerceReport(text string) *domain.VerificationReport {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &m); err != nil {
		return nil
	}
	score, ok := m["overallScore"].(float64)
	if !ok {
		return nil
	}

	rep := &domain.VerificationReport{
		OverallScore:  clampScore(int(score)),
		Discrepancies: []domain.Discrepancy{},
		Corrections:   []string{},
	}
	if s, ok := m["summary"].(string); ok {
		rep.Summary = s
	}

	if arr, ok := m["discrepancies"].([]any); ok {
		for _, item := range arr {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			d := domain.Discrepancy{
				Element:      stringField(entry, "element"),
				Issue:        stringField(entry, "issue"),
				SuggestedFix: stringField(entry, "suggestedFix"),
				Severity:     coerceSeverity(stringField(entry, "severity")),
			}
			rep.Discrepancies = append(rep.Discrepancies, d)
		}
	}
	if arr, ok := m["corrections"].([]any); ok {
		for _, item := range arr {
			if s, ok := item.(string); ok {
				rep.Corrections = append(rep.Corrections, s)
			}
		}
	}
	return rep
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func coerceSeverity(s string) domain.Severity {
	switch domain.Severity(strings.ToLower(s)) {
	case domain.SeverityMajor:
		return domain.SeverityMajor
	case domain.SeverityCritical:
		return domain.SeverityCritical
	default:
		return domain.SeverityMinor
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// lastTopLevelObject scans for balanced top-level {...} spans, string- and
// escape-aware, and returns the last one.
func lastTopLevelObject(s string) string {
	depth := 0
	start := -1
	lastStart, lastEnd := -1, -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					lastStart, lastEnd = start, i+1
				}
			}
		}
	}
	if lastStart < 0 {
		return ""
	}
	return s[lastStart:lastEnd]
}
