package domain

// UserMetadata captures the visual intent extracted from a request.
// An empty field means the analyzer found nothing for that dimension;
// it must never be treated as a real value.
type UserMetadata struct {
	SubjectPosition     string `json:"subjectPosition,omitempty"`
	Mood                string `json:"mood,omitempty"`
	Lighting            string `json:"lighting,omitempty"`
	EmotionalExpression string `json:"emotionalExpression,omitempty"`
	TextPosition        string `json:"textPosition,omitempty"`
	Contrast            string `json:"contrast,omitempty"`
}

// Empty reports whether no dimension was extracted.
func (m UserMetadata) Empty() bool {
	return m == UserMetadata{}
}
