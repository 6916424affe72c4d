// Package matcher scores request metadata against reference thumbnail
// descriptors and picks the reference a generation should be guided by.
package matcher

import (
	"strings"

	"thumbforge/internal/catalog"
	"thumbforge/internal/domain"
)

// Dimension weights. Mood dominates because it carries the most
// click-through signal; text placement and contrast matter least.
const (
	weightSubjectPosition     = 15
	weightMood                = 20
	weightLighting            = 15
	weightEmotionalExpression = 15
	weightTextPosition        = 10
	weightContrast            = 10
)

type dimension struct {
	name   string
	weight int
	user   func(domain.UserMetadata) string
	ref    func(domain.ThumbnailMetadata) string
}

var dimensions = []dimension{
	{
		name:   "subjectPosition",
		weight: weightSubjectPosition,
		user:   func(m domain.UserMetadata) string { return m.SubjectPosition },
		ref:    func(m domain.ThumbnailMetadata) string { return m.SubjectPosition },
	},
	{
		name:   "mood",
		weight: weightMood,
		user:   func(m domain.UserMetadata) string { return m.Mood },
		ref:    func(m domain.ThumbnailMetadata) string { return m.Mood },
	},
	{
		name:   "lighting",
		weight: weightLighting,
		user:   func(m domain.UserMetadata) string { return m.Lighting },
		ref:    func(m domain.ThumbnailMetadata) string { return m.Lighting },
	},
	{
		name:   "emotionalExpression",
		weight: weightEmotionalExpression,
		user:   func(m domain.UserMetadata) string { return m.EmotionalExpression },
		ref:    func(m domain.ThumbnailMetadata) string { return m.EmotionalExpression },
	},
	{
		name:   "textPosition",
		weight: weightTextPosition,
		user:   func(m domain.UserMetadata) string { return m.TextPosition },
		ref:    func(m domain.ThumbnailMetadata) string { return m.TextPosition },
	},
	{
		name:   "contrast",
		weight: weightContrast,
		user:   func(m domain.UserMetadata) string { return m.Contrast },
		ref:    func(m domain.ThumbnailMetadata) string { return m.Contrast },
	},
}

// Score compares user metadata against one reference's descriptors.
// Only dimensions the user metadata actually has participate: the
// denominator is the sum of their weights, so a request with a single
// known dimension can still score a perfect 1.0. A nil or empty
// comparison scores zero.
func Score(user domain.UserMetadata, ref *domain.ThumbnailMetadata) (float64, []string) {
	if ref == nil {
		return 0, nil
	}

	considered := 0
	matched := 0
	var matchedOn []string
	for _, d := range dimensions {
		uv := canonical(d.user(user))
		if uv == "" {
			continue
		}
		considered += d.weight
		if rv := canonical(d.ref(*ref)); rv != "" && rv == uv {
			matched += d.weight
			matchedOn = append(matchedOn, d.name)
		}
	}
	if considered == 0 {
		return 0, nil
	}
	return float64(matched) / float64(considered), matchedOn
}

// Best picks the winning candidate: highest score, ties broken by viral
// score descending, then id ascending. With no candidates there is
// nothing to guide the generation and Best returns nil. Candidates
// without comparable metadata still compete at score zero, so an
// unanalyzable request degrades to the most viral reference instead of
// none.
func Best(user domain.UserMetadata, candidates []catalog.Candidate) *domain.MatchResult {
	if len(candidates) == 0 {
		return nil
	}

	var (
		haveBest    bool
		bestScore   float64
		bestRef     domain.ReferenceThumbnail
		bestMatched []string
	)
	for _, cand := range candidates {
		score, matchedOn := Score(user, cand.Metadata)
		if !haveBest || beats(score, cand.Reference, bestScore, bestRef) {
			haveBest = true
			bestScore = score
			bestRef = cand.Reference
			bestMatched = matchedOn
		}
	}

	return &domain.MatchResult{
		ReferenceID: bestRef.ID,
		Score:       bestScore,
		MatchedOn:   bestMatched,
	}
}

func beats(score float64, ref domain.ReferenceThumbnail, bestScore float64, best domain.ReferenceThumbnail) bool {
	if score != bestScore {
		return score > bestScore
	}
	if ref.ViralScore != best.ViralScore {
		return ref.ViralScore > best.ViralScore
	}
	return ref.ID < best.ID
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
