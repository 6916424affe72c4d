package domain

import "time"

// ReferenceThumbnail is a curated catalog entry with a proven
// click-through record. ViralScore is normalized to [0,1].
type ReferenceThumbnail struct {
	ID         string
	Title      string
	Category   string
	Style      string
	ViralScore float64
	SourceURL  string
	Active     bool
	CreatedAt  time.Time
}

// ThumbnailMetadata describes the visual composition of a reference.
// Descriptor fields mirror UserMetadata so the two can be compared
// dimension by dimension. HasText, TextStyle and Symmetry steer prompt
// composition; Confidence in [0,1] records how sure the extraction was.
type ThumbnailMetadata struct {
	ReferenceID         string   `json:"referenceId"`
	SubjectPosition     string   `json:"subjectPosition,omitempty"`
	Mood                string   `json:"mood,omitempty"`
	Lighting            string   `json:"lighting,omitempty"`
	EmotionalExpression string   `json:"emotionalExpression,omitempty"`
	TextPosition        string   `json:"textPosition,omitempty"`
	Contrast            string   `json:"contrast,omitempty"`
	HasText             bool     `json:"hasText,omitempty"`
	TextStyle           string   `json:"textStyle,omitempty"`
	Symmetry            string   `json:"symmetry,omitempty"`
	ColorPalette        []string `json:"colorPalette,omitempty"`
	Notes               string   `json:"notes,omitempty"`
	Confidence          float64  `json:"confidence,omitempty"`
}

// TopicPreference pins an ordered shortlist of reference ids to a topic.
type TopicPreference struct {
	Topic        string
	ReferenceIDs []string
	UpdatedAt    time.Time
}

// MatchResult links a generation to the reference it was guided by.
type MatchResult struct {
	ReferenceID string   `json:"referenceId"`
	Score       float64  `json:"score"`
	MatchedOn   []string `json:"matchedOn,omitempty"`
}
