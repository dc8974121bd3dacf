package prompt

import "github.com/bryanwahyu/motionspec/internal/domain/analysis"

// Response-shape templates, one per output format. The headings and fence
// language tags here are load-bearing: the output parser matches on them, so
// a template change and a parser change always travel together.

var formatTemplates = map[analysis.OutputFormat]string{
	analysis.FormatCSS: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```css" + `
/* @keyframes plus the triggering selector rules. One rule block per
   animated element, all timing in ms, easing as cubic-bezier(). */
` + "```" + `

After the code, list implementation notes as plain prose (stacking context,
will-change hints, reduced-motion fallback).`,

	analysis.FormatGSAP: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```javascript" + `
// One gsap.timeline() reproducing the full sequence. Use position
// parameters for overlaps and stagger() where elements fan out.
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatFramerMotion: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```tsx" + `
// motion.* components with variants. Transitions carry explicit
// duration/delay/ease values, no defaults left implicit.
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatReact: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```tsx" + `
// A self-contained React component (hooks + inline styles or CSS-in-JS)
// reproducing the animation without external animation libraries.
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatTailwind: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```html" + `
<!-- Markup with Tailwind utility classes; custom keyframes go in a
     tailwind.config.js theme.extend.animation block in a second fence. -->
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatWAAPI: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```javascript" + `
// element.animate() calls with keyframe arrays and KeyframeEffect
// options. Compose overlapping animations explicitly.
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatSwiftUI: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```swift" + `
// A SwiftUI view using withAnimation / .animation modifiers. Map easing
// to the closest timingCurve and state the cubic-bezier it approximates.
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatCompose: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```kotlin" + `
// A Jetpack Compose implementation using animate*AsState /
// updateTransition with explicit tween(durationMillis, easing).
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatFlutter: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```dart" + `
// A Flutter widget with AnimationController + Tween/CurvedAnimation.
// Name the Curves constant used and the bezier it corresponds to.
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatLottie: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```json" + `
// A Lottie-style layer sketch: layers with ks transform stanzas, frame
// timings at the stated frame rate. Approximate shapes are acceptable;
// timing values are not.
` + "```" + `

After the code, list implementation notes as plain prose.`,

	analysis.FormatDesignTokens: `Respond in exactly this shape:

**Overview:** one sentence describing the animation.

` + "```json" + `
{
  "motion": { "duration": {}, "easing": {}, "delay": {}, "distance": {} },
  "color": {},
  "elements": []
}
` + "```" + `

After the code, explain each token group in plain prose.`,

	analysis.FormatQAChecklist: `Respond as one continuous markdown document:

## Overview
One short paragraph describing the animation.

## Checklist
A table of verifiable assertions, one row per animated property:
| # | Element | Property | Expected value | How to verify |

## Tolerances
State the acceptable deviation for each timing and spatial value.`,

	analysis.FormatStoryboard: `Respond as one continuous markdown document:

## Overview
One short paragraph describing the animation.

## Frames
One "### Frame N (t=X.XXs)" section per key moment, each describing every
visible element's position, size, opacity and transform at that instant.

## Transitions
For each consecutive frame pair: what interpolates, over what duration,
with what easing.`,

	analysis.FormatTimeline: `Respond as one continuous markdown document:

## Overview
One short paragraph describing the animation.

## Timeline
A table ordered by start time:
| Start | End | Element | Property | From | To | Easing |
All times in ms from t=0, easing as named curve or cubic-bezier().

## Dependencies
Which rows are triggered by completion of other rows, as a list.`,

	analysis.FormatDevHandoff: `Respond as one continuous markdown document:

## Overview
One short paragraph describing the animation.

## Element inventory
Every animated element: name, role, initial state, final state.

## Motion spec
Per element, property-by-property: from, to, duration, delay, easing.

## Implementation guidance
Recommended web implementation route and the pitfalls of this particular
sequence.

## Assets
Colors (exact hex), shadows, radii, and any imagery that must be exported.`,
}

// templateFor returns the response-shape template for a format. The format
// set is closed and validated upstream.
func templateFor(f analysis.OutputFormat) string {
	return formatTemplates[f]
}
