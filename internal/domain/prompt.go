package domain

// EngineeredPrompt is the synthesis-ready prompt assembled by the
// composer, snapshotted on the generation record.
type EngineeredPrompt struct {
	Text         string   `json:"text"`
	NegativeText string   `json:"negativeText,omitempty"`
	Model        Model    `json:"model"`
	StyleApplied string   `json:"styleApplied"`
	MoodApplied  string   `json:"moodApplied,omitempty"`
	QualityScore int      `json:"qualityScore"`
	Variations   []string `json:"variations,omitempty"`
}

// PromptFeedback carries caller adjustments for prompt refinement.
// Empty fields request no change.
type PromptFeedback struct {
	TooMuchEmphasis       string `json:"tooMuchEmphasis,omitempty"`
	NeedsMoreFocus        string `json:"needsMoreFocus,omitempty"`
	ColorAdjustment       string `json:"colorAdjustment,omitempty"`
	LightingAdjustment    string `json:"lightingAdjustment,omitempty"`
	CompositionAdjustment string `json:"compositionAdjustment,omitempty"`
}

// Empty reports whether the feedback requests no change at all.
func (f PromptFeedback) Empty() bool {
	return f == PromptFeedback{}
}
