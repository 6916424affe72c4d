package promptgen

import (
	"strings"
	"testing"

	"thumbforge/internal/domain"
)

func sampleInput() ComposeInput {
	return ComposeInput{
		Request: domain.GenerationRequest{
			UserID:        "user-1",
			UserPrompt:    "I beat Elden Ring without taking damage",
			PreferredMood: "shocked",
			Topic:         "gaming",
			Model:         domain.ModelFluxSchnell,
		},
		Metadata: domain.UserMetadata{
			SubjectPosition: "left",
			Lighting:        "neon",
			TextPosition:    "bottom",
			Contrast:        "high",
		},
		Reference: &domain.ReferenceThumbnail{
			ID:    "ref-1",
			Title: "Zero Damage Run",
			Style: "bold",
		},
		RefMeta: &domain.ThumbnailMetadata{
			ReferenceID:  "ref-1",
			HasText:      true,
			ColorPalette: []string{"red", "black", "gold"},
		},
		Match: &domain.MatchResult{ReferenceID: "ref-1", Score: 0.7},
	}
}

func TestBuildDeterministic(t *testing.T) {
	in := sampleInput()

	first := Build(in, 2)
	second := Build(in, 2)

	if first.Text != second.Text {
		t.Fatalf("Build text not deterministic:\nfirst:  %q\nsecond: %q", first.Text, second.Text)
	}
	if first.NegativeText != second.NegativeText {
		t.Fatalf("negative text not deterministic")
	}
	if len(first.Variations) != 2 || len(second.Variations) != 2 {
		t.Fatalf("expected 2 variations, got %d and %d", len(first.Variations), len(second.Variations))
	}
	for i := range first.Variations {
		if first.Variations[i] != second.Variations[i] {
			t.Fatalf("variation %d not deterministic", i)
		}
	}
	if !strings.Contains(first.Text, "YouTube thumbnail") {
		t.Fatalf("prompt missing the YouTube thumbnail framing: %q", first.Text)
	}
}

func TestComposeIncludesMetadata(t *testing.T) {
	text, styleApplied, moodApplied := Compose(sampleInput())

	for _, want := range []string{
		"I beat Elden Ring without taking damage",
		"wide-eyed expression",
		"electric color spill",
		"Place the subject on the left side",
		"rule of thirds",
		"Build the color palette around red, black, gold",
		"Keep the bottom of the frame clear for title text",
		"Grade with high contrast",
		`"Zero Damage Run"`,
		"high resolution",
		"stop scrolling",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("composed text missing %q:\n%s", want, text)
		}
	}
	if styleApplied != "bold" {
		t.Errorf("styleApplied = %q, want bold (from reference)", styleApplied)
	}
	if moodApplied != "shocked" {
		t.Errorf("moodApplied = %q, want shocked", moodApplied)
	}
}

func TestComposeSentenceOrder(t *testing.T) {
	text, _, _ := Compose(sampleInput())

	ordered := []string{
		"Create a YouTube thumbnail",
		"Composition follows",
		"Lighting:",
		"The main subject shows",
		"Visual style:",
		"Build the color palette",
		"clear for title text",
		"contrast",
		"high resolution",
		"stop scrolling",
	}
	last := -1
	for _, marker := range ordered {
		idx := strings.Index(text, marker)
		if idx < 0 {
			t.Fatalf("composed text missing %q:\n%s", marker, text)
		}
		if idx < last {
			t.Errorf("%q appears out of order:\n%s", marker, text)
		}
		last = idx
	}
}

func TestComposeFallsBackToReferenceDescriptors(t *testing.T) {
	in := sampleInput()
	in.Metadata = domain.UserMetadata{}
	in.RefMeta.TextPosition = "top"
	in.RefMeta.Contrast = "low"

	text, _, _ := Compose(in)
	if !strings.Contains(text, "Keep the top of the frame clear for title text") {
		t.Errorf("reference text position not used: %q", text)
	}
	if !strings.Contains(text, "Grade with low contrast") {
		t.Errorf("reference contrast not used: %q", text)
	}
}

func TestComposeTextLinesRequireReferenceText(t *testing.T) {
	in := sampleInput()
	in.RefMeta.HasText = false

	text, _, _ := Compose(in)
	if strings.Contains(text, "clear for title text") {
		t.Errorf("text-region line rendered without reference text: %q", text)
	}

	in.RefMeta.HasText = true
	in.RefMeta.TextStyle = "bold impact caps"
	text, _, _ = Compose(in)
	if !strings.Contains(text, "Keep the bottom of the frame clear for title text") {
		t.Errorf("text-region line missing: %q", text)
	}
	if !strings.Contains(text, "Render the title text in a bold impact caps style") {
		t.Errorf("text-style line missing: %q", text)
	}
}

func TestComposeSymmetryOverridesDefaultComposition(t *testing.T) {
	in := sampleInput()

	text, _, _ := Compose(in)
	if !strings.Contains(text, "Composition follows the rule of thirds") {
		t.Errorf("missing symmetry should fall back to the default composition: %q", text)
	}

	in.RefMeta.Symmetry = "centered"
	text, _, _ = Compose(in)
	if !strings.Contains(text, "Composition follows the reference's centered symmetry") {
		t.Errorf("reference symmetry not used: %q", text)
	}
	if strings.Contains(text, "rule of thirds") {
		t.Errorf("default composition should yield to the reference symmetry: %q", text)
	}
}

func TestComposeStylePrecedence(t *testing.T) {
	tests := []struct {
		name      string
		request   string
		reference string
		want      string
	}{
		{"request wins", "minimalist", "bold", "minimalist"},
		{"reference fallback", "", "bold", "bold"},
		{"library default", "", "", DefaultStyle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ComposeInput{Request: domain.GenerationRequest{UserPrompt: "x", PreferredStyle: tt.request}}
			if tt.reference != "" {
				in.Reference = &domain.ReferenceThumbnail{ID: "r", Style: tt.reference}
			}
			_, styleApplied, _ := Compose(in)
			if styleApplied != tt.want {
				t.Errorf("styleApplied = %q, want %q", styleApplied, tt.want)
			}
		})
	}
}

func TestComposeSkipsReferenceGuidanceOnZeroScore(t *testing.T) {
	in := sampleInput()
	in.Match.Score = 0

	text, _, _ := Compose(in)
	if strings.Contains(text, "layout inspiration") {
		t.Fatalf("zero-score match should add no reference guidance: %q", text)
	}
}

func TestComposeMentionsUploadedPhotos(t *testing.T) {
	in := sampleInput()
	in.Request.UploadedImageRefs = []string{"a.jpg", "b.jpg"}

	text, _, _ := Compose(in)
	if !strings.Contains(text, "Incorporate the 2 supplied subject photo(s)") {
		t.Fatalf("composed text missing uploaded photo instruction: %q", text)
	}
}

func TestEnhanceForViral(t *testing.T) {
	withTopic := EnhanceForViral("base.", "gaming")
	if !strings.Contains(withTopic, "eye-catching") {
		t.Errorf("missing viral phrasing: %q", withTopic)
	}
	if !strings.Contains(withTopic, "epic gameplay moment") {
		t.Errorf("missing gaming keywords: %q", withTopic)
	}

	unknown := EnhanceForViral("base.", "basket weaving")
	if !strings.Contains(unknown, "eye-catching") {
		t.Errorf("unknown topic should still get viral phrasing: %q", unknown)
	}
	if strings.Contains(unknown, "Include ") {
		t.Errorf("unknown topic should add no keyword list: %q", unknown)
	}
}

func TestOptimizeForModel(t *testing.T) {
	tests := []struct {
		name         string
		model        domain.Model
		wantPositive string
		wantNegative string
	}{
		{"flux schnell", domain.ModelFluxSchnell, "text-free background", "watermark"},
		{"flux dev", domain.ModelFluxDev, "accurate anatomy", "washed out colors"},
		{"dall-e has no negative", domain.ModelDallE3, "without reinterpreting", ""},
		{"unknown falls back to default model", domain.Model("mystery"), "text-free background", "watermark"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, negative := OptimizeForModel("base.", tt.model)
			if !strings.Contains(text, tt.wantPositive) {
				t.Errorf("text = %q, want hint %q", text, tt.wantPositive)
			}
			if tt.wantNegative == "" && negative != "" {
				t.Errorf("negative = %q, want empty", negative)
			}
			if tt.wantNegative != "" && !strings.Contains(negative, tt.wantNegative) {
				t.Errorf("negative = %q, want %q", negative, tt.wantNegative)
			}
		})
	}
}

func TestVariationsFollowLibraryOrder(t *testing.T) {
	in := sampleInput()
	in.Request.PreferredStyle = "cinematic"

	got := Variations(in, 3)
	if len(got) != 3 {
		t.Fatalf("len(variations) = %d, want 3", len(got))
	}
	for i, style := range styleOrder[:3] {
		if !strings.Contains(got[i], styleDescriptors[style]) {
			t.Errorf("variation %d should use style %q: %q", i, style, got[i])
		}
		if !strings.Contains(got[i], "eye-catching") {
			t.Errorf("variation %d missing viral phrasing", i)
		}
	}
}

func TestVariationsCappedByLibrary(t *testing.T) {
	got := Variations(sampleInput(), 50)
	if want := len(styleOrder); len(got) != want {
		t.Fatalf("len(variations) = %d, want %d", len(got), want)
	}
}

func TestRefine(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		fb          domain.PromptFeedback
		want        []string
		wantMissing []string
	}{
		{
			name:        "removes overemphasized phrase",
			text:        "A dramatic scene with Neon Glow everywhere.",
			fb:          domain.PromptFeedback{TooMuchEmphasis: "neon glow"},
			wantMissing: []string{"Neon Glow", "neon glow"},
		},
		{
			name: "adds focus instruction",
			text: "A scene.",
			fb:   domain.PromptFeedback{NeedsMoreFocus: "the cat"},
			want: []string{"Increase focus on the cat."},
		},
		{
			name: "adds every adjustment",
			text: "A scene.",
			fb: domain.PromptFeedback{
				ColorAdjustment:       "warmer tones",
				LightingAdjustment:    "softer shadows",
				CompositionAdjustment: "tighter crop",
			},
			want: []string{
				"Adjust the color treatment: warmer tones.",
				"Adjust the lighting: softer shadows.",
				"Adjust the composition: tighter crop.",
			},
		},
		{
			name: "empty feedback is a no-op",
			text: "A scene.",
			want: []string{"A scene."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Refine(tt.text, tt.fb)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Refine() = %q, want substring %q", got, w)
				}
			}
			for _, m := range tt.wantMissing {
				if strings.Contains(got, m) {
					t.Errorf("Refine() = %q, should not contain %q", got, m)
				}
			}
		})
	}
}

func TestRefineCleansWhitespace(t *testing.T) {
	got := Refine("Keep the neon glow subtle.", domain.PromptFeedback{TooMuchEmphasis: "neon glow"})
	if strings.Contains(got, "  ") {
		t.Errorf("Refine left a double space: %q", got)
	}
	if strings.Contains(got, " .") {
		t.Errorf("Refine left a dangling period: %q", got)
	}
}
