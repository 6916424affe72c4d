package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"thumbforge/internal/domain"

	"github.com/go-chi/chi/v5"
)

type generationCreateRequest struct {
	Prompt            string   `json:"prompt"`
	UploadedImageRefs []string `json:"uploaded_image_refs"`
	PreferredStyle    string   `json:"preferred_style"`
	PreferredMood     string   `json:"preferred_mood"`
	Topic             string   `json:"topic"`
	Model             string   `json:"model"`
}

type generationView struct {
	ID             string                    `json:"id"`
	Status         domain.Status             `json:"status"`
	Request        domain.GenerationRequest  `json:"request"`
	Metadata       domain.UserMetadata       `json:"metadata"`
	Match          *domain.MatchResult       `json:"match,omitempty"`
	Prompt         domain.EngineeredPrompt   `json:"prompt"`
	RawImageURL    string                    `json:"raw_image_url,omitempty"`
	FinalImageURL  string                    `json:"final_image_url,omitempty"`
	Provider       string                    `json:"provider,omitempty"`
	Assessment     *domain.QualityAssessment `json:"assessment,omitempty"`
	AppliedEffects []string                  `json:"applied_effects,omitempty"`
	CreditsCharged int                       `json:"credits_charged"`
	Refunded       bool                      `json:"refunded"`
	ErrorMessage   string                    `json:"error_message,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func viewOf(rec *domain.GenerationRecord) generationView {
	v := generationView{
		ID:             rec.ID,
		Status:         rec.Status,
		Request:        rec.Request,
		Metadata:       rec.Metadata,
		Match:          rec.Match,
		Prompt:         rec.Prompt,
		RawImageURL:    rec.RawImageURL,
		FinalImageURL:  rec.FinalImageURL,
		Provider:       rec.Provider,
		AppliedEffects: rec.AppliedEffects,
		CreditsCharged: rec.CreditsCharged,
		Refunded:       rec.Refunded,
		ErrorMessage:   rec.ErrorMessage,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if rec.Status == domain.StatusCompleted {
		assessment := rec.Assessment
		v.Assessment = &assessment
	}
	return v
}

// GenerationsCreate runs the whole pipeline synchronously and returns
// the completed record, or the failed record alongside the error.
func (a *App) GenerationsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generationCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	rec, err := a.Pipeline.Generate(r.Context(), domain.GenerationRequest{
		UserID:            userID,
		UserPrompt:        req.Prompt,
		UploadedImageRefs: req.UploadedImageRefs,
		PreferredStyle:    req.PreferredStyle,
		PreferredMood:     req.PreferredMood,
		Topic:             req.Topic,
		Model:             domain.Model(req.Model),
	})
	if err != nil {
		a.generationError(w, rec, err)
		return
	}
	a.json(w, http.StatusCreated, viewOf(rec))
}

// generationError maps pipeline failures onto the API. Failures that
// left a record behind include its view so clients can show the id and
// refund state.
func (a *App) generationError(w http.ResponseWriter, rec *domain.GenerationRecord, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", verr.Error())
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.errorWithRecord(w, http.StatusForbidden, "insufficient_credits", "not enough credits for a generation", rec)
	default:
		a.errorWithRecord(w, http.StatusBadGateway, "generation_failed", err.Error(), rec)
	}
}

func (a *App) errorWithRecord(w http.ResponseWriter, code int, errCode, message string, rec *domain.GenerationRecord) {
	body := map[string]any{"error": errorBody{Code: errCode, Message: message}}
	if rec != nil {
		body["generation"] = viewOf(rec)
	}
	a.json(w, code, body)
}

func (a *App) GenerationGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "generationID")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "generation id required")
		return
	}

	rec, err := a.Generations.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("generation_id", id).Msg("handlers: load generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load generation")
		return
	}
	if rec.UserID != userID {
		a.error(w, http.StatusForbidden, "forbidden", "generation belongs to another user")
		return
	}
	a.json(w, http.StatusOK, viewOf(rec))
}

func (a *App) GenerationsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	recs, err := a.Generations.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: list generations failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list generations")
		return
	}
	items := make([]generationView, 0, len(recs))
	for i := range recs {
		items = append(items, viewOf(&recs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
