// Package vision extracts visual descriptors from a generation request.
// Analysis is best-effort: callers must accept partial or empty metadata.
package vision

import (
	"context"
	"strings"

	"thumbforge/internal/domain"
)

// AnalyzeInput is the prompt text plus any uploaded image references.
type AnalyzeInput struct {
	Prompt    string
	ImageRefs []string
}

type Analyzer interface {
	Analyze(ctx context.Context, in AnalyzeInput) (domain.UserMetadata, error)
}

const (
	geminiProviderName  = "gemini"
	keywordProviderName = "keyword"
)

// lexiconEntry maps a descriptor value to the prompt terms that imply
// it. Entries are scanned in order and the first hit per dimension wins,
// so more specific values come first.
type lexiconEntry struct {
	value string
	terms []string
}

var moodLexicon = []lexiconEntry{
	{"shocked", []string{"shocked", "shocking", "can't believe", "unbelievable", "insane", "mind-blowing", "jaw-dropping"}},
	{"excited", []string{"excited", "amazing", "awesome", "epic", "incredible", "hype"}},
	{"angry", []string{"angry", "furious", "rage", "outraged"}},
	{"mysterious", []string{"secret", "hidden", "mystery", "mysterious"}},
	{"serious", []string{"serious", "warning", "the truth", "important", "must know"}},
	{"curious", []string{"curious", "what happens", "how to", "why "}},
	{"happy", []string{"happy", "joyful", "smiling", "celebration", "fun"}},
}

// expressionForMood gives each mood a concrete facial direction the
// prompt composer can render.
var expressionForMood = map[string]string{
	"shocked":    "wide eyes and open mouth",
	"excited":    "big grin and raised eyebrows",
	"angry":      "furrowed brows and clenched jaw",
	"mysterious": "half-lit guarded look",
	"serious":    "focused stare",
	"curious":    "raised eyebrow and tilted head",
	"happy":      "relaxed smile",
}

var lightingLexicon = []lexiconEntry{
	{"neon", []string{"neon", "cyberpunk", "futuristic", "gaming"}},
	{"backlit", []string{"sunset", "silhouette", "backlit", "golden hour"}},
	{"studio", []string{"studio", "product shot", "clean background"}},
	{"soft", []string{"soft", "cozy", "calm", "gentle"}},
	{"natural", []string{"outdoor", "nature", "daylight", "sunny"}},
	{"dramatic", []string{"dramatic", "intense", "cinematic", "battle"}},
}

var subjectPositionLexicon = []lexiconEntry{
	{"left", []string{"on the left", "left side"}},
	{"right", []string{"on the right", "right side"}},
	{"center", []string{"centered", "in the center", "in the middle"}},
}

var textPositionLexicon = []lexiconEntry{
	{"top", []string{"text at the top", "title at the top", "top text", "headline"}},
	{"bottom", []string{"text at the bottom", "title at the bottom", "bottom text", "caption"}},
}

var contrastLexicon = []lexiconEntry{
	{"high", []string{"high contrast", "bold", "punchy", "vibrant", "pop"}},
	{"low", []string{"low contrast", "subtle", "muted", "minimal"}},
}

// KeywordAnalyzer scans the prompt against fixed lexicons. It cannot
// look inside uploaded images and never returns an error.
type KeywordAnalyzer struct{}

func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{}
}

func (k *KeywordAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (domain.UserMetadata, error) {
	lower := strings.ToLower(in.Prompt)

	meta := domain.UserMetadata{
		Mood:            scanLexicon(lower, moodLexicon),
		Lighting:        scanLexicon(lower, lightingLexicon),
		SubjectPosition: scanLexicon(lower, subjectPositionLexicon),
		TextPosition:    scanLexicon(lower, textPositionLexicon),
		Contrast:        scanLexicon(lower, contrastLexicon),
	}
	if meta.Mood != "" {
		meta.EmotionalExpression = expressionForMood[meta.Mood]
	}
	return meta, nil
}

// ExpressionFor returns the facial direction paired with a mood, or ""
// for moods outside the lexicon.
func ExpressionFor(mood string) string {
	return expressionForMood[strings.ToLower(strings.TrimSpace(mood))]
}

func scanLexicon(lower string, lexicon []lexiconEntry) string {
	for _, entry := range lexicon {
		for _, term := range entry.terms {
			if strings.Contains(lower, term) {
				return entry.value
			}
		}
	}
	return ""
}

var _ Analyzer = (*KeywordAnalyzer)(nil)
