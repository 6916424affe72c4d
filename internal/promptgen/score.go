package promptgen

import (
	"strings"
	"unicode/utf8"
)

// ScoreReport grades a prompt and explains the grade.
type ScoreReport struct {
	Score           int      `json:"score"`
	Strengths       []string `json:"strengths,omitempty"`
	Weaknesses      []string `json:"weaknesses,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

const (
	baseScore = 50
	minScore  = 0
	maxScore  = 100

	goodLengthMin = 100
	goodLengthMax = 1000
)

// Keyword categories the score looks for. Matching is a lowercase
// substring check, so multi-word terms count as one hit.
var (
	qualityScoreTerms = []string{
		"high resolution", "4k", "ultra detailed", "sharp focus",
		"professional", "high quality", "crisp", "detailed",
	}
	compositionScoreTerms = []string{
		"rule of thirds", "composition", "framing", "negative space",
		"close-up", "centered",
	}
	lightingScoreTerms = []string{
		"lighting", "backlight", "shadows", "illuminated", "glow",
	}
	moodScoreTerms = []string{
		"shocked", "excited", "happy", "serious", "angry", "mysterious",
		"curious", "expression", "mood",
	}
	colorScoreTerms = []string{
		"color", "vibrant", "saturated", "palette", "neon", "golden",
	}
	viralScoreTerms = []string{
		"eye-catching", "attention-grabbing", "click-worthy", "viral",
	}
)

// Score grades prompt text on a 0-100 scale: a base of 50 plus bonuses
// for quality keyword coverage (more than three hits), composition,
// lighting, mood, color and viral phrasing, and a small bonus for a
// workable length. Empty categories turn into weaknesses with matching
// recommendations rather than deductions.
func Score(text string) ScoreReport {
	lower := strings.ToLower(text)
	report := ScoreReport{Score: baseScore}

	if n := countHits(lower, qualityScoreTerms); n > 3 {
		report.Score += 15
		report.Strengths = append(report.Strengths, "strong quality keyword coverage")
	} else if n == 0 {
		report.Weaknesses = append(report.Weaknesses, "no quality keywords")
		report.Recommendations = append(report.Recommendations, "add quality keywords such as high resolution, 4k or sharp focus")
	}

	report.applyCategory(lower, compositionScoreTerms, 10, "composition guidance",
		"describe the composition, e.g. rule of thirds or close-up framing")
	report.applyCategory(lower, lightingScoreTerms, 10, "lighting direction",
		"describe the lighting, e.g. dramatic shadows or soft glow")
	report.applyCategory(lower, moodScoreTerms, 10, "clear emotional tone",
		"name the mood or expression the subject should show")
	report.applyCategory(lower, colorScoreTerms, 5, "color direction",
		"give the color treatment, e.g. vibrant or saturated palette")
	report.applyCategory(lower, viralScoreTerms, 10, "viral phrasing",
		"add viral phrasing such as eye-catching or click-worthy")

	if n := utf8.RuneCountInString(text); n >= goodLengthMin && n <= goodLengthMax {
		report.Score += 5
	} else {
		report.Recommendations = append(report.Recommendations, "aim for a prompt between 100 and 1000 characters")
	}

	if report.Score > maxScore {
		report.Score = maxScore
	}
	if report.Score < minScore {
		report.Score = minScore
	}
	return report
}

func (r *ScoreReport) applyCategory(lower string, terms []string, bonus int, strength, recommendation string) {
	if countHits(lower, terms) > 0 {
		r.Score += bonus
		r.Strengths = append(r.Strengths, strength)
		return
	}
	r.Weaknesses = append(r.Weaknesses, "missing "+strength)
	r.Recommendations = append(r.Recommendations, recommendation)
}

func countHits(lower string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			n++
		}
	}
	return n
}
