package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"thumbforge/internal/domain"
	"thumbforge/internal/promptgen"
)

const maxPreviewVariations = 5

type promptPreviewRequest struct {
	Prompt            string   `json:"prompt"`
	UploadedImageRefs []string `json:"uploaded_image_refs"`
	PreferredStyle    string   `json:"preferred_style"`
	PreferredMood     string   `json:"preferred_mood"`
	Topic             string   `json:"topic"`
	Model             string   `json:"model"`
	Variations        int      `json:"variations"`
}

// PromptsPreview engineers a prompt without debiting credits or
// persisting anything, so clients can iterate before generating.
func (a *App) PromptsPreview(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req promptPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	variations := req.Variations
	if variations < 0 {
		variations = 0
	}
	if variations > maxPreviewVariations {
		variations = maxPreviewVariations
	}

	prompt, err := a.Pipeline.Preview(r.Context(), domain.GenerationRequest{
		UserID:            userID,
		UserPrompt:        req.Prompt,
		UploadedImageRefs: req.UploadedImageRefs,
		PreferredStyle:    req.PreferredStyle,
		PreferredMood:     req.PreferredMood,
		Topic:             req.Topic,
		Model:             domain.Model(req.Model),
	}, variations)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			a.error(w, http.StatusUnprocessableEntity, "validation_failed", verr.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: prompt preview failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to engineer prompt")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"prompt": prompt,
		"report": promptgen.Score(prompt.Text),
	})
}

type promptRefineRequest struct {
	Text     string                `json:"text"`
	Feedback domain.PromptFeedback `json:"feedback"`
}

// PromptsRefine applies feedback to an existing prompt text and
// re-scores the result.
func (a *App) PromptsRefine(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req promptRefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Text == "" {
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", "text is required")
		return
	}

	refined := promptgen.Refine(req.Text, req.Feedback)
	a.json(w, http.StatusOK, map[string]any{
		"text":   refined,
		"report": promptgen.Score(refined),
	})
}
