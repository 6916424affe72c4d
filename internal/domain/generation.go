package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Model enumerates supported synthesis models.
type Model string

const (
	ModelFluxSchnell Model = "flux-schnell"
	ModelFluxDev     Model = "flux-dev"
	ModelDallE3      Model = "dall-e-3"

	// DefaultModel is used whenever a request names no model or an
	// unknown one.
	DefaultModel = ModelFluxSchnell
)

// NormalizeModel maps free-form model input to a supported model.
func NormalizeModel(s string) Model {
	m := Model(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModelFluxSchnell, ModelFluxDev, ModelDallE3:
		return m
	}
	return DefaultModel
}

// Status enumerates generation lifecycle stages.
type Status string

const (
	StatusPending        Status = "pending"
	StatusValidating     Status = "validating"
	StatusAnalyzing      Status = "analyzing"
	StatusMatching       Status = "matching"
	StatusPrompting      Status = "prompting"
	StatusGenerating     Status = "generating"
	StatusPostProcessing Status = "post_processing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var stageRank = map[Status]int{
	StatusPending:        0,
	StatusValidating:     1,
	StatusAnalyzing:      2,
	StatusMatching:       3,
	StatusPrompting:      4,
	StatusGenerating:     5,
	StatusPostProcessing: 6,
	StatusCompleted:      7,
}

// CanTransition reports whether a record may move from one status to
// the next. Stages advance forward only; failed is reachable from any
// non-terminal stage; terminal records never move again.
func CanTransition(from, next Status) bool {
	if from.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	fr, ok := stageRank[from]
	nr, nok := stageRank[next]
	if !ok || !nok {
		return false
	}
	return nr > fr
}

// Prompt length bounds, counted in runes after trimming.
const (
	MinPromptLen = 3
	MaxPromptLen = 2000
)

// GenerationRequest is the caller's input to the pipeline.
type GenerationRequest struct {
	UserID            string   `json:"userId"`
	UserPrompt        string   `json:"userPrompt"`
	UploadedImageRefs []string `json:"uploadedImageRefs,omitempty"`
	PreferredStyle    string   `json:"preferredStyle,omitempty"`
	PreferredMood     string   `json:"preferredMood,omitempty"`
	Topic             string   `json:"topic,omitempty"`
	Model             Model    `json:"model"`
}

// Normalize trims free-text fields, lowercases the categorical ones
// and defaults the model.
func (r *GenerationRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.UserPrompt = strings.TrimSpace(r.UserPrompt)
	r.PreferredStyle = strings.ToLower(strings.TrimSpace(r.PreferredStyle))
	r.PreferredMood = strings.ToLower(strings.TrimSpace(r.PreferredMood))
	r.Topic = strings.ToLower(strings.TrimSpace(r.Topic))
	r.Model = NormalizeModel(string(r.Model))

	refs := r.UploadedImageRefs[:0]
	for _, ref := range r.UploadedImageRefs {
		if v := strings.TrimSpace(ref); v != "" {
			refs = append(refs, v)
		}
	}
	r.UploadedImageRefs = refs
}

// Validate checks a normalized request.
func (r GenerationRequest) Validate() error {
	if r.UserID == "" {
		return &ValidationError{Field: "userId", Reason: "required"}
	}
	if n := utf8.RuneCountInString(r.UserPrompt); n < MinPromptLen || n > MaxPromptLen {
		return &ValidationError{
			Field:  "userPrompt",
			Reason: fmt.Sprintf("must be between %d and %d characters", MinPromptLen, MaxPromptLen),
		}
	}
	return nil
}

// GenerationRecord is the durable trace of one pipeline run.
type GenerationRecord struct {
	ID             string
	UserID         string
	Request        GenerationRequest
	Metadata       UserMetadata
	Match          *MatchResult
	Prompt         EngineeredPrompt
	RawImageURL    string
	FinalImageURL  string
	Provider       string
	Assessment     QualityAssessment
	AppliedEffects []string
	CreditsCharged int
	Refunded       bool
	Status         Status
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
