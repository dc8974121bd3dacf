package analysis

import (
	"fmt"
	"strings"
)

// OutputFormat enum: the deliverable shape the model is asked to produce.
type OutputFormat string

const (
	FormatCSS          OutputFormat = "css"
	FormatGSAP         OutputFormat = "gsap"
	FormatFramerMotion OutputFormat = "framer-motion"
	FormatReact        OutputFormat = "react"
	FormatTailwind     OutputFormat = "tailwind"
	FormatWAAPI        OutputFormat = "waapi"
	FormatSwiftUI      OutputFormat = "swiftui"
	FormatCompose      OutputFormat = "compose"
	FormatFlutter      OutputFormat = "flutter"
	FormatLottie       OutputFormat = "lottie"
	FormatDesignTokens OutputFormat = "design-tokens"
	FormatQAChecklist  OutputFormat = "qa-checklist"
	FormatStoryboard   OutputFormat = "storyboard"
	FormatTimeline     OutputFormat = "timeline"
	FormatDevHandoff   OutputFormat = "dev-handoff"
)

// QualityLevel enum
type QualityLevel string

const (
	QualityFast QualityLevel = "fast"
	QualityPro  QualityLevel = "pro"
	QualityMax  QualityLevel = "max"
)

// TriggerContext enum. TriggerUnspecified asks the model to detect the
// trigger itself.
type TriggerContext string

const (
	TriggerUnspecified TriggerContext = "unspecified"
	TriggerHover       TriggerContext = "hover"
	TriggerClick       TriggerContext = "click"
	TriggerScroll      TriggerContext = "scroll"
	TriggerPageLoad    TriggerContext = "page-load"
	TriggerFocus       TriggerContext = "focus"
	TriggerDrag        TriggerContext = "drag"
)

// FormatMeta maps an OutputFormat to its display language tag and download
// extension. Every format has an entry; a miss is a programming error.
type FormatMeta struct {
	Language    string
	Extension   string
	FullDoc     bool // deliverable is one continuous markdown document
	DisplayName string
}

var formatMeta = map[OutputFormat]FormatMeta{
	FormatCSS:          {Language: "css", Extension: ".css", DisplayName: "CSS keyframes"},
	FormatGSAP:         {Language: "javascript", Extension: ".js", DisplayName: "GSAP timeline"},
	FormatFramerMotion: {Language: "tsx", Extension: ".tsx", DisplayName: "Framer Motion"},
	FormatReact:        {Language: "tsx", Extension: ".tsx", DisplayName: "React component"},
	FormatTailwind:     {Language: "html", Extension: ".html", DisplayName: "Tailwind markup"},
	FormatWAAPI:        {Language: "javascript", Extension: ".js", DisplayName: "Web Animations API"},
	FormatSwiftUI:      {Language: "swift", Extension: ".swift", DisplayName: "SwiftUI"},
	FormatCompose:      {Language: "kotlin", Extension: ".kt", DisplayName: "Jetpack Compose"},
	FormatFlutter:      {Language: "dart", Extension: ".dart", DisplayName: "Flutter"},
	FormatLottie:       {Language: "json", Extension: ".json", DisplayName: "Lottie sketch"},
	FormatDesignTokens: {Language: "json", Extension: ".json", DisplayName: "Design tokens"},
	FormatQAChecklist:  {Language: "markdown", Extension: ".md", FullDoc: true, DisplayName: "QA checklist"},
	FormatStoryboard:   {Language: "markdown", Extension: ".md", FullDoc: true, DisplayName: "Storyboard"},
	FormatTimeline:     {Language: "markdown", Extension: ".md", FullDoc: true, DisplayName: "Timeline spec"},
	FormatDevHandoff:   {Language: "markdown", Extension: ".md", FullDoc: true, DisplayName: "Developer handoff"},
}

// MetaFor returns the display metadata for a format. Panics on unknown
// formats: configs are validated at the boundary, so a miss here means a
// format was added without a table entry.
func MetaFor(f OutputFormat) FormatMeta {
	m, ok := formatMeta[f]
	if !ok {
		panic(fmt.Sprintf("analysis: no format metadata for %q", f))
	}
	return m
}

// Formats returns the closed set of output formats.
func Formats() []OutputFormat {
	out := make([]OutputFormat, 0, len(formatMeta))
	for f := range formatMeta {
		out = append(out, f)
	}
	return out
}

// ParseFormat validates a client-supplied format value.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formatMeta[f]; !ok {
		return "", fmt.Errorf("%w: unknown output format %q", ErrInvalidInput, s)
	}
	return f, nil
}

// ParseQuality validates a client-supplied quality tier.
func ParseQuality(s string) (QualityLevel, error) {
	q := QualityLevel(strings.ToLower(strings.TrimSpace(s)))
	switch q {
	case QualityFast, QualityPro, QualityMax:
		return q, nil
	}
	return "", fmt.Errorf("%w: unknown quality level %q", ErrInvalidInput, s)
}

// ParseTrigger validates a client-supplied trigger context. Empty means
// unspecified.
func ParseTrigger(s string) (TriggerContext, error) {
	t := TriggerContext(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TriggerUnspecified, nil
	}
	switch t {
	case TriggerUnspecified, TriggerHover, TriggerClick, TriggerScroll, TriggerPageLoad, TriggerFocus, TriggerDrag:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown trigger context %q", ErrInvalidInput, s)
}

// VideoMetadata is captured once from the client and immutable afterward.
// A nil *VideoMetadata is tolerated everywhere.
type VideoMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	SizeBytes       int64   `json:"size_bytes"`
	MimeType        string  `json:"mime_type"`
	Name            string  `json:"name"`
}

// Config is the per-request analysis configuration. Values are validated at
// the boundary via the Parse* helpers.
type Config struct {
	Format  OutputFormat   `json:"format"`
	Quality QualityLevel   `json:"quality"`
	Trigger TriggerContext `json:"trigger"`
}

// VideoPart is the tagged union of the two delivery paths: inline bytes or a
// provider-side file reference. Exactly one side is set per request.
type VideoPart struct {
	Inline    []byte `json:"-"`
	RemoteURI string `json:"remote_uri,omitempty"`
	// RemoteName is the provider-side resource name, used for cleanup.
	RemoteName string `json:"remote_name,omitempty"`
	MimeType   string `json:"mime_type"`
}

func InlinePart(data []byte, mimeType string) VideoPart {
	return VideoPart{Inline: data, MimeType: mimeType}
}

func RemotePart(uri, name, mimeType string) VideoPart {
	return VideoPart{RemoteURI: uri, RemoteName: name, MimeType: mimeType}
}

func (p VideoPart) IsRemote() bool { return p.RemoteURI != "" }

// Image is an optional supplementary still (keyframe grid) attached alongside
// the video. Consumed read-only by the prompt builder and providers.
type Image struct {
	Data        []byte `json:"-"`
	MimeType    string `json:"mime_type"`
	Description string `json:"description"`
}

// PipelineEventType enum
type PipelineEventType string

const (
	EventPassStart    PipelineEventType = "pass_start"
	EventPassComplete PipelineEventType = "pass_complete"
	EventThinking     PipelineEventType = "thinking"
	EventChunk        PipelineEventType = "chunk"
	EventError        PipelineEventType = "error"
)

// PipelineEvent is the unit of progress emitted by the agentic pipeline.
// Produced once, never mutated, consumed exactly once downstream.
type PipelineEvent struct {
	Type        PipelineEventType `json:"type"`
	Pass        int               `json:"pass"`
	PassName    string            `json:"pass_name"`
	TotalPasses int               `json:"total_passes"`
	Text        string            `json:"text,omitempty"`
}

// Result is the structured outcome of one analysis. Derived deterministically
// from raw model text; never partially populated.
type Result struct {
	Overview    string       `json:"overview"`
	Code        string       `json:"code"`
	Format      OutputFormat `json:"format"`
	Notes       string       `json:"notes,omitempty"`
	RawAnalysis string       `json:"raw_analysis,omitempty"`
}

// Severity enum for verification discrepancies.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Discrepancy is one fidelity issue the verification pass found.
type Discrepancy struct {
	Element      string   `json:"element"`
	Issue        string   `json:"issue"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix"`
}

// VerificationReport grades the generated deliverable against the video.
// Produced only by the agentic path; a nil report is a normal outcome when
// the model failed to emit well-formed JSON.
type VerificationReport struct {
	OverallScore  int           `json:"overall_score"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	Corrections   []string      `json:"corrections"`
	Summary       string        `json:"summary,omitempty"`
}
