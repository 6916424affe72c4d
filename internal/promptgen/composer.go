// Package promptgen assembles synthesis-ready prompts from a request,
// its extracted metadata and the matched reference. Every function is a
// pure transformation: identical inputs produce identical text.
package promptgen

import (
	"fmt"
	"regexp"
	"strings"

	"thumbforge/internal/domain"
)

// ComposeInput carries everything the composer may draw from. Reference
// and RefMeta are nil when matching found nothing.
type ComposeInput struct {
	Request   domain.GenerationRequest
	Metadata  domain.UserMetadata
	Reference *domain.ReferenceThumbnail
	RefMeta   *domain.ThumbnailMetadata
	Match     *domain.MatchResult
}

// Build runs the full prompt engineering chain: compose, viral
// enhancement, model optimization and scoring, plus styled variations
// when variationCount is positive.
func Build(in ComposeInput, variationCount int) domain.EngineeredPrompt {
	text, styleApplied, moodApplied := Compose(in)
	enhanced := EnhanceForViral(text, in.Request.Topic)
	final, negative := OptimizeForModel(enhanced, in.Request.Model)

	prompt := domain.EngineeredPrompt{
		Text:         final,
		NegativeText: negative,
		Model:        in.Request.Model,
		StyleApplied: styleApplied,
		MoodApplied:  moodApplied,
		QualityScore: Score(final).Score,
	}
	if variationCount > 0 {
		prompt.Variations = Variations(in, variationCount)
	}
	return prompt
}

// Compose assembles the base prompt in a fixed sentence order: subject,
// composition, lighting, mood, style, color palette, title-text region,
// contrast, then the quality block and closing line. It returns the
// text plus the style and mood that were actually applied, so the
// record can explain where the prompt came from.
func Compose(in ComposeInput) (text, styleApplied, moodApplied string) {
	styleApplied = resolveStyle(in)
	moodApplied = resolveMood(in)
	lighting := resolveLighting(in)

	var b strings.Builder
	fmt.Fprintf(&b, "Create a YouTube thumbnail for: %s.", in.Request.UserPrompt)
	if pos := in.Metadata.SubjectPosition; pos != "" {
		fmt.Fprintf(&b, " Place the subject on the %s side of the frame.", pos)
	}
	if sym := resolveSymmetry(in); sym != "" {
		fmt.Fprintf(&b, " Composition follows the reference's %s symmetry.", sym)
	} else {
		fmt.Fprintf(&b, " Composition follows the %s.", DefaultComposition)
	}
	fmt.Fprintf(&b, " Lighting: %s.", lightingTerm(lighting))
	if moodApplied != "" {
		fmt.Fprintf(&b, " The main subject shows %s.", moodPhrase(moodApplied))
	}
	fmt.Fprintf(&b, " Visual style: %s.", styleDescriptor(styleApplied))
	if in.RefMeta != nil && len(in.RefMeta.ColorPalette) > 0 {
		fmt.Fprintf(&b, " Build the color palette around %s.", strings.Join(in.RefMeta.ColorPalette, ", "))
	}
	if in.RefMeta != nil && in.RefMeta.HasText {
		if tp := resolveTextPosition(in); tp != "" {
			fmt.Fprintf(&b, " Keep the %s of the frame clear for title text.", tp)
		}
		if ts := in.RefMeta.TextStyle; ts != "" {
			fmt.Fprintf(&b, " Render the title text in a %s style.", ts)
		}
	}
	if c := resolveContrast(in); c != "" {
		fmt.Fprintf(&b, " Grade with %s contrast.", c)
	}
	if in.Match != nil && in.Match.Score > 0 && in.Reference != nil && in.Reference.Title != "" {
		fmt.Fprintf(&b, " Take layout inspiration from the composition of %q.", in.Reference.Title)
	}
	if n := len(in.Request.UploadedImageRefs); n > 0 {
		fmt.Fprintf(&b, " Incorporate the %d supplied subject photo(s) naturally.", n)
	}
	b.WriteString(" " + qualityBlock)
	b.WriteString(" " + closingLine)

	return b.String(), styleApplied, moodApplied
}

// EnhanceForViral appends the shared viral phrasing plus the topic's
// keyword list. Unknown topics get the shared phrasing only.
func EnhanceForViral(text, topic string) string {
	out := text + " " + viralBlock
	if kws := topicKeywords[topic]; len(kws) > 0 {
		out += " Include " + strings.Join(kws, ", ") + "."
	}
	return out
}

// OptimizeForModel appends per-model hint text and returns the model's
// negative prompt. Models without a negative vocabulary (DALL-E) return
// an empty negative.
func OptimizeForModel(text string, model domain.Model) (string, string) {
	hint, ok := modelHints[domain.NormalizeModel(string(model))]
	if !ok {
		return text, ""
	}
	if hint.positive != "" {
		text = text + " " + hint.positive
	}
	return text, hint.negative
}

// Variations recomposes the prompt under the first n styles from the
// library's fixed order, preserving everything else. n is capped by
// the library size.
func Variations(in ComposeInput, n int) []string {
	var out []string
	for _, style := range styleOrder {
		if len(out) >= n {
			break
		}
		alt := in
		alt.Request.PreferredStyle = style
		text, _, _ := Compose(alt)
		out = append(out, EnhanceForViral(text, in.Request.Topic))
	}
	return out
}

// Refine applies caller feedback to an existing prompt: phrases with
// too much emphasis are removed outright, and each requested adjustment
// becomes an explicit trailing instruction.
func Refine(text string, fb domain.PromptFeedback) string {
	out := text
	if fb.TooMuchEmphasis != "" {
		out = removePhrase(out, fb.TooMuchEmphasis)
	}
	if fb.NeedsMoreFocus != "" {
		out += fmt.Sprintf(" Increase focus on %s.", fb.NeedsMoreFocus)
	}
	if fb.ColorAdjustment != "" {
		out += fmt.Sprintf(" Adjust the color treatment: %s.", fb.ColorAdjustment)
	}
	if fb.LightingAdjustment != "" {
		out += fmt.Sprintf(" Adjust the lighting: %s.", fb.LightingAdjustment)
	}
	if fb.CompositionAdjustment != "" {
		out += fmt.Sprintf(" Adjust the composition: %s.", fb.CompositionAdjustment)
	}
	return out
}

func resolveStyle(in ComposeInput) string {
	if s := in.Request.PreferredStyle; s != "" {
		return s
	}
	if in.Reference != nil && in.Reference.Style != "" {
		return in.Reference.Style
	}
	return DefaultStyle
}

func resolveMood(in ComposeInput) string {
	if m := in.Request.PreferredMood; m != "" {
		return m
	}
	if m := in.Metadata.Mood; m != "" {
		return m
	}
	if in.RefMeta != nil && in.RefMeta.Mood != "" {
		return in.RefMeta.Mood
	}
	return ""
}

func resolveLighting(in ComposeInput) string {
	if l := in.Metadata.Lighting; l != "" {
		return l
	}
	if in.RefMeta != nil && in.RefMeta.Lighting != "" {
		return in.RefMeta.Lighting
	}
	return DefaultLighting
}

func resolveTextPosition(in ComposeInput) string {
	if tp := in.Metadata.TextPosition; tp != "" {
		return tp
	}
	if in.RefMeta != nil && in.RefMeta.TextPosition != "" {
		return in.RefMeta.TextPosition
	}
	return ""
}

func resolveSymmetry(in ComposeInput) string {
	if in.RefMeta != nil {
		return in.RefMeta.Symmetry
	}
	return ""
}

func resolveContrast(in ComposeInput) string {
	if c := in.Metadata.Contrast; c != "" {
		return c
	}
	if in.RefMeta != nil && in.RefMeta.Contrast != "" {
		return in.RefMeta.Contrast
	}
	return ""
}

var spaceRun = regexp.MustCompile(`\s{2,}`)

func removePhrase(text, phrase string) string {
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(phrase))
	if err != nil {
		return text
	}
	out := re.ReplaceAllString(text, "")
	out = spaceRun.ReplaceAllString(out, " ")
	out = strings.ReplaceAll(out, " .", ".")
	out = strings.ReplaceAll(out, " ,", ",")
	return strings.TrimSpace(out)
}
