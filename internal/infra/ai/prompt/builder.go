// Package prompt builds the instruction text sent with every vision-model
// call. All builders are pure: fixed inputs produce byte-identical output.
package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

const methodology = `You are analyzing a short screen recording of a UI animation. Extract, with
measurement-grade precision:

- Colors: exact hex or rgba() values read from the pixels. Never use named
  colors.
- Timing: durations and delays in ms (or s for values >= 1s), measured
  against the video timeline.
- Easing: a named curve only when it matches exactly; otherwise explicit
  cubic-bezier(x1, y1, x2, y2) coefficients.
- Spatial values: pixel offsets, scale factors, rotation degrees, measured
  from initial to final frames.
- Flag any value you estimated rather than measured with "(estimated)".`

const accuracyProtocol = `Accuracy protocol:
- Use a single coordinate system: origin top-left, +x right, +y down.
- Prefer pixel units; use relative units only when the layout demands it.
- The sum of your stated durations and delays must reconcile with the actual
  video duration.
- Describe only elements visible in the video. Do not invent elements,
  states, or interactions you cannot see.
- Label every estimated value explicitly.`

const triggerDetect = `First determine what starts the animation. Look for a cursor, a tap
indicator, scroll movement, or an initial page paint, and state the trigger
you infer before anything else.`

// Build composes the full instruction prompt for one analysis call.
// Composition order is fixed: methodology, trigger, metadata, accuracy
// protocol, format template, optional image note.
func Build(format analysis.OutputFormat, trigger analysis.TriggerContext, meta *analysis.VideoMetadata, quality analysis.QualityLevel, image *analysis.Image) string {
	var b strings.Builder

	b.WriteString(methodology)
	b.WriteString("\n\n")

	if trigger == analysis.TriggerUnspecified || trigger == "" {
		b.WriteString(triggerDetect)
	} else {
		fmt.Fprintf(&b, "The animation is triggered by: %s. Anchor all timings to that trigger.", trigger)
	}
	b.WriteString("\n\n")

	if meta != nil {
		b.WriteString(metadataBlock(meta))
		b.WriteString("\n\n")
	}

	b.WriteString(accuracyProtocol)
	b.WriteString("\n\n")

	if quality == analysis.QualityMax {
		b.WriteString("Take the time to re-check every numeric value against the video before answering.\n\n")
	}

	b.WriteString(templateFor(format))

	if image != nil && image.Description != "" {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "A supplementary still image is attached: %s. Use it to cross-check colors and element positions.", image.Description)
	}

	return b.String()
}

func metadataBlock(m *analysis.VideoMetadata) string {
	var b strings.Builder
	b.WriteString("Video metadata:\n")
	if m.Name != "" {
		fmt.Fprintf(&b, "- name: %s\n", m.Name)
	}
	if m.DurationSeconds > 0 {
		fmt.Fprintf(&b, "- duration: %.2fs\n", m.DurationSeconds)
	}
	if m.Width > 0 && m.Height > 0 {
		fmt.Fprintf(&b, "- resolution: %dx%d\n", m.Width, m.Height)
	}
	if m.SizeBytes > 0 {
		fmt.Fprintf(&b, "- size: %d bytes\n", m.SizeBytes)
	}
	if m.MimeType != "" {
		fmt.Fprintf(&b, "- mime type: %s\n", m.MimeType)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Pipeline pass prompts. Pass 1 and 4 demand a single JSON object; pass 2 is
// structured markdown; pass 3 reuses the format template and is forbidden
// from re-estimating values pass 2 pinned down.

// BuildDecompose builds the pass 1 prompt.
func BuildDecompose(trigger analysis.TriggerContext, meta *analysis.VideoMetadata) string {
	var b strings.Builder
	b.WriteString(methodology)
	b.WriteString("\n\n")
	if trigger == analysis.TriggerUnspecified || trigger == "" {
		b.WriteString(triggerDetect)
	} else {
		fmt.Fprintf(&b, "The animation is triggered by: %s.", trigger)
	}
	b.WriteString("\n\n")
	if meta != nil {
		b.WriteString(metadataBlock(meta))
		b.WriteString("\n\n")
	}
	b.WriteString(`Decompose the video. Emit ONE well-formed JSON object and nothing else —
no prose, no code fences. Shape:

{
  "scenes": [{"name": "", "start_s": 0.0, "end_s": 0.0, "description": ""}],
  "elements": [{"name": "", "type": "", "selector": "",
                "initial_state": "", "final_state": ""}],
  "causal_chain": [{"trigger": "", "effect": "", "delay_ms": 0}]
}

Enumerate every distinct animation scene with start/end timestamps, every
animated element with an inventory entry, and the causal chain linking
triggers to effects.`)
	return b.String()
}

// BuildDeepAnalysis builds the pass 2 prompt from pass 1's JSON.
func BuildDeepAnalysis(decomposition string, meta *analysis.VideoMetadata) string {
	var b strings.Builder
	b.WriteString(methodology)
	b.WriteString("\n\n")
	if meta != nil {
		b.WriteString(metadataBlock(meta))
		b.WriteString("\n\n")
	}
	b.WriteString("Scene decomposition from the previous examination:\n\n")
	b.WriteString(decomposition)
	b.WriteString("\n\n")
	b.WriteString(accuracyProtocol)
	b.WriteString("\n\n")
	b.WriteString(`Re-examine the video against this decomposition and produce precise motion
specifications as structured markdown. For every scene and every element:

- Property-by-property transform specs: property, from, to, duration, delay,
  easing as explicit cubic-bezier(), transform-origin.
- Stagger patterns: which elements fan out, interval, direction.
- Spatial and causal relationships between elements' animation curves
  (leads, follows, mirrors, overlaps).

Do not output JSON. Do not repeat the decomposition; refine it.`)
	return b.String()
}

// BuildGenerate builds the pass 3 prompt from the accumulated context.
func BuildGenerate(format analysis.OutputFormat, decomposition, motionSpec string) string {
	var b strings.Builder
	b.WriteString("Scene decomposition:\n\n")
	b.WriteString(decomposition)
	b.WriteString("\n\nPrecise motion specifications:\n\n")
	b.WriteString(motionSpec)
	b.WriteString("\n\n")
	b.WriteString(`Produce the final deliverable using EXACTLY the numeric values established
above. Re-estimating a duration, delay, easing, color, or offset that the
motion specifications already pin down is an error.

`)
	b.WriteString(templateFor(format))
	return b.String()
}

// BuildVerify builds the pass 4 prompt from the artifact and pass 1's scenes.
func BuildVerify(artifact, decomposition string) string {
	var b strings.Builder
	b.WriteString("Generated deliverable:\n\n")
	b.WriteString(artifact)
	b.WriteString("\n\nOriginal scene decomposition:\n\n")
	b.WriteString(decomposition)
	b.WriteString("\n\n")
	b.WriteString(`Re-examine the video one final time and grade how faithfully the
deliverable reproduces it. Emit ONE well-formed JSON object and nothing
else — no prose, no code fences. Shape:

{
  "overallScore": 0,
  "discrepancies": [{"element": "", "issue": "",
                     "severity": "minor|major|critical",
                     "suggestedFix": ""}],
  "corrections": [""],
  "summary": ""
}

overallScore is an integer 0-100. List concrete discrepancies between the
deliverable and the video, and concrete corrections.`)
	return b.String()
}
