package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

func TestParseOutput_OverviewLabel(t *testing.T) {
	raw := "**Overview:** A card slides up and fades in over 300ms.\n\n```css\n.card { animation: rise 300ms ease-out; }\n```\n"
	res, err := ParseOutput(raw, domain.FormatCSS)
	require.NoError(t, err)
	assert.Equal(t, "A card slides up and fades in over 300ms.", res.Overview)
	assert.Equal(t, ".card { animation: rise 300ms ease-out; }", res.Code)
	assert.Equal(t, raw, res.RawAnalysis)
}

func TestParseOutput_OverviewHeadingFallback(t *testing.T) {
	raw := "## Overview\n\nA modal scales from 0.9 to 1.0 while the backdrop dims.\n\n## Frames\n\ndetail\n"
	res, err := ParseOutput(raw, domain.FormatStoryboard)
	require.NoError(t, err)
	assert.Equal(t, "A modal scales from 0.9 to 1.0 while the backdrop dims.", res.Overview)
}

func TestParseOutput_OverviewFirstParagraphFallback(t *testing.T) {
	raw := "The button ripples outward on click.\n\n```css\n.x{}\n```\n"
	res, err := ParseOutput(raw, domain.FormatCSS)
	require.NoError(t, err)
	assert.Equal(t, "The button ripples outward on click.", res.Overview)
}

func TestParseOutput_OverviewTruncated(t *testing.T) {
	long := strings.Repeat("word ", 100) // 500 chars
	res, err := ParseOutput(long, domain.FormatCSS)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Overview), overviewMaxLen)
	assert.True(t, strings.HasPrefix(res.Overview, "word word"))
}

func TestParseOutput_AggregatesCodeBlocks(t *testing.T) {
	raw := "**Overview:** two-part animation.\n\n" +
		"```css\n.a { opacity: 0; }\n```\n\n" +
		"Then the trigger rule:\n\n" +
		"```css\n.a:hover { opacity: 1; }\n```\n\n" +
		"Use will-change sparingly.\n"
	res, err := ParseOutput(raw, domain.FormatCSS)
	require.NoError(t, err)
	assert.Equal(t, ".a { opacity: 0; }\n\n.a:hover { opacity: 1; }", res.Code)
	assert.Contains(t, res.Notes, "Then the trigger rule:")
	assert.Contains(t, res.Notes, "Use will-change sparingly.")
	assert.NotContains(t, res.Notes, "opacity: 0")
}

func TestParseOutput_UntaggedFenceCounts(t *testing.T) {
	raw := "```\nelement.animate([], {});\n```\n"
	res, err := ParseOutput(raw, domain.FormatWAAPI)
	require.NoError(t, err)
	assert.Equal(t, "element.animate([], {});", res.Code)
}

func TestParseOutput_UnknownFenceTagGoesToNotes(t *testing.T) {
	raw := "```css\n.a{}\n```\n\n```mermaid\ngraph TD\n```\n"
	res, err := ParseOutput(raw, domain.FormatCSS)
	require.NoError(t, err)
	assert.Equal(t, ".a{}", res.Code)
	assert.Contains(t, res.Notes, "graph TD")
}

func TestParseOutput_NoFencesDegradesToRaw(t *testing.T) {
	raw := "The model ignored the shape and wrote prose with .selector { } inline."
	res, err := ParseOutput(raw, domain.FormatGSAP)
	require.NoError(t, err)
	assert.Equal(t, raw, res.Code)
	assert.Empty(t, res.Notes)
}

func TestParseOutput_FullDocPassthrough(t *testing.T) {
	raw := "## Overview\n\nIntro.\n\n## Timeline\n\n| Start | End |\n\n```css\n.should-not-be-extracted{}\n```\n"
	for _, f := range []domain.OutputFormat{
		domain.FormatQAChecklist, domain.FormatStoryboard,
		domain.FormatTimeline, domain.FormatDevHandoff,
	} {
		res, err := ParseOutput(raw, f)
		require.NoError(t, err)
		assert.Equal(t, raw, res.Code, "format %s", f)
		assert.Empty(t, res.Notes, "format %s", f)
	}
}

func TestParseOutput_UnknownFormat(t *testing.T) {
	_, err := ParseOutput("text", domain.OutputFormat("svelte"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseVerification_Fenced(t *testing.T) {
	raw := "Final grading below.\n\n```json\n{\"overallScore\": 87, \"discrepancies\": [{\"element\": \".card\", \"issue\": \"duration off by 40ms\", \"severity\": \"major\", \"suggestedFix\": \"use 340ms\"}], \"corrections\": [\"set duration to 340ms\"], \"summary\": \"close match\"}\n```\n"
	rep := ParseVerification(raw)
	require.NotNil(t, rep)
	assert.Equal(t, 87, rep.OverallScore)
	require.Len(t, rep.Discrepancies, 1)
	assert.Equal(t, domain.SeverityMajor, rep.Discrepancies[0].Severity)
	assert.Equal(t, "use 340ms", rep.Discrepancies[0].SuggestedFix)
	assert.Equal(t, []string{"set duration to 340ms"}, rep.Corrections)
	assert.Equal(t, "close match", rep.Summary)
}

func TestParseVerification_BackwardScanPicksLastValidFence(t *testing.T) {
	raw := "```json\n{\"note\": \"not a report\"}\n```\n\n```json\n{\"overallScore\": 62}\n```\n\n```json\n{\"still\": \"not a report\"}\n```\n"
	rep := ParseVerification(raw)
	require.NotNil(t, rep)
	assert.Equal(t, 62, rep.OverallScore)
}

func TestParseVerification_NakedJSON(t *testing.T) {
	raw := "Here is my assessment:\n\n{\"overallScore\": 95, \"discrepancies\": [], \"corrections\": []}\n\nDone."
	rep := ParseVerification(raw)
	require.NotNil(t, rep)
	assert.Equal(t, 95, rep.OverallScore)
	assert.Empty(t, rep.Discrepancies)
}

func TestParseVerification_ScoreClamped(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"over", `{"overallScore": 142}`, 100},
		{"under", `{"overallScore": -5}`, 0},
		{"edge", `{"overallScore": 100}`, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := ParseVerification(tt.raw)
			require.NotNil(t, rep)
			assert.Equal(t, tt.want, rep.OverallScore)
		})
	}
}

func TestParseVerification_BadSeverityDefaultsToMinor(t *testing.T) {
	raw := `{"overallScore": 70, "discrepancies": [{"element": "x", "issue": "y", "severity": "catastrophic"}]}`
	rep := ParseVerification(raw)
	require.NotNil(t, rep)
	require.Len(t, rep.Discrepancies, 1)
	assert.Equal(t, domain.SeverityMinor, rep.Discrepancies[0].Severity)
}

func TestParseVerification_MalformedIsNil(t *testing.T) {
	for _, raw := range []string{
		"",
		"no json here",
		`{"overallScore": "eighty"}`,
		"```json\n{truncated\n```",
		`{"discrepancies": []}`,
	} {
		assert.Nil(t, ParseVerification(raw), "input %q", raw)
	}
}

func TestParseVerification_StringAwareBraceScan(t *testing.T) {
	// braces inside string values must not unbalance the scan
	raw := `prose {"overallScore": 55, "summary": "uses {braces} and \"quotes\" inside"} trailing`
	rep := ParseVerification(raw)
	require.NotNil(t, rep)
	assert.Equal(t, 55, rep.OverallScore)
	assert.Contains(t, rep.Summary, "{braces}")
}
